package services

import (
	"context"
	"fmt"
	"time"

	"github.com/remodelai/remodel-backend/internal/platform/logger"
	"github.com/remodelai/remodel-backend/internal/types"
)

// Generator is the external text-generation collaborator: opaque latency,
// opaque determinism. Both the main draft and corrective passes go through it.
type Generator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// ValidationPolicy holds the consistency tolerances. Like UpdatePolicy these
// are tuned constants exposed as configuration.
type ValidationPolicy struct {
	// Absolute dollar tolerances before a draft's price band counts as
	// contradicting the established budget.
	LowTolerance  int
	HighTolerance int
	// TimelineBand mirrors UpdatePolicy.TimelineBand for draft checking.
	TimelineBand float64
	// KitchenMinWeeks: a full kitchen remodel quoted below this is
	// flagged as unrealistically short.
	KitchenMinWeeks int
	// NarrowScopeMinWeeks replaces KitchenMinWeeks when the query asks
	// about a partial job.
	NarrowScopeMinWeeks int
	// CorrectionTimeout bounds the corrective regeneration call; on
	// timeout the uncorrected draft is returned rather than failing.
	CorrectionTimeout time.Duration
}

func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{
		LowTolerance:        5000,
		HighTolerance:       10000,
		TimelineBand:        0.5,
		KitchenMinWeeks:     4,
		NarrowScopeMinWeeks: 1,
		CorrectionTimeout:   20 * time.Second,
	}
}

// ConsistencyValidator checks a draft answer against the belief state and
// requests at most one corrective regeneration. It nudges the generator
// toward consistency; it never owns the numbers.
type ConsistencyValidator struct {
	log       *logger.Logger
	gen       Generator
	extractor *FactExtractor
	policy    ValidationPolicy
}

func NewConsistencyValidator(baseLog *logger.Logger, gen Generator, extractor *FactExtractor, policy ValidationPolicy) *ConsistencyValidator {
	if policy.LowTolerance <= 0 {
		policy = DefaultValidationPolicy()
	}
	return &ConsistencyValidator{
		log:       baseLog.With("service", "ConsistencyValidator"),
		gen:       gen,
		extractor: extractor,
		policy:    policy,
	}
}

// Validate returns the draft when it is consistent with the context, a
// corrected regeneration when the first check fails and the correction
// passes, and the original draft when the correction fails too. It always
// returns an answer.
func (v *ConsistencyValidator) Validate(ctx context.Context, draft string, conv *types.ConversationContext, query string) string {
	instruction := v.check(draft, conv, query)
	if instruction == "" {
		return draft
	}

	corrected, err := v.regenerate(ctx, draft, instruction)
	if err != nil {
		v.log.Warn("corrective regeneration failed; keeping draft",
			"session_id", conv.SessionID,
			"error", err,
		)
		return draft
	}

	// Bounded retry: one corrective pass. If it still fails, return the
	// original draft rather than looping.
	if v.check(corrected, conv, query) != "" {
		v.log.Debug("correction did not converge; returning original draft", "session_id", conv.SessionID)
		return draft
	}
	return corrected
}

// check returns a correction instruction, or "" when the draft passes.
func (v *ConsistencyValidator) check(draft string, conv *types.ConversationContext, query string) string {
	if msg := v.checkPrices(draft, conv); msg != "" {
		return msg
	}
	if msg := v.checkTimeline(draft, conv, query); msg != "" {
		return msg
	}
	return v.checkCompleteness(draft, query)
}

func (v *ConsistencyValidator) checkPrices(draft string, conv *types.ConversationContext) string {
	if conv.ProjectType == "" {
		return ""
	}
	known := conv.DiscussedPrices[conv.ProjectType]
	if len(known) == 0 {
		return ""
	}

	draftPrices := priceTokenRe.FindAllStringSubmatch(draft, -1)
	if len(draftPrices) == 0 {
		return ""
	}

	dMin, dMax, ok := tokenBounds(submatchTokens(draftPrices))
	if !ok {
		return ""
	}
	kMin, kMax, ok := tokenBounds(known)
	if !ok {
		return ""
	}

	if abs(dMin-kMin) > v.policy.LowTolerance || abs(dMax-kMax) > v.policy.HighTolerance {
		return fmt.Sprintf(
			"The response appears inconsistent with the established budget range $%s-$%s. Original response:\n%s\n\nPlease restate the answer keeping all figures within that budget range.",
			formatDollars(kMin), formatDollars(kMax), draft,
		)
	}
	return ""
}

func (v *ConsistencyValidator) checkTimeline(draft string, conv *types.ConversationContext, query string) string {
	if conv.Timeline == "" {
		return ""
	}
	current := parseTimelineString(conv.Timeline)
	if current == nil {
		return ""
	}
	detected := parseTimelineString(draft)
	if detected == nil {
		return ""
	}

	narrow := v.extractor.IsNarrowScope(query)

	minRealistic := v.policy.KitchenMinWeeks
	if narrow {
		minRealistic = v.policy.NarrowScopeMinWeeks
	}
	if conv.ProjectType == "kitchen" && detected.MinWeeks < minRealistic {
		return fmt.Sprintf(
			"The timeline of %s is unrealistically short for this type of project. Original response:\n%s\n\nPlease revise with a realistic timeline.",
			detected.String(), draft,
		)
	}

	// A deliberately narrowed job may legitimately quote a much shorter
	// timeline than the established full-project one.
	if narrow {
		return ""
	}

	band := v.policy.TimelineBand
	if float64(detected.MinWeeks) < float64(current.MinWeeks)*band ||
		float64(detected.MaxWeeks) > float64(current.MaxWeeks)/band {
		return fmt.Sprintf(
			"The timeline %s conflicts with the established timeline of %s. Original response:\n%s\n\nPlease revise to stay consistent with the established timeline.",
			detected.String(), conv.Timeline, draft,
		)
	}
	return ""
}

func (v *ConsistencyValidator) checkCompleteness(draft string, query string) string {
	if !v.extractor.IsPricingQuestion(query) {
		return ""
	}
	if anyDollarRe.MatchString(draft) {
		return ""
	}
	return fmt.Sprintf(
		"The user asked about costs, but the response contains no price information. Original response:\n%s\n\nPlease revise to include specific price ranges in dollars.",
		draft,
	)
}

func (v *ConsistencyValidator) regenerate(ctx context.Context, draft string, instruction string) (string, error) {
	cctx := ctx
	if v.policy.CorrectionTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, v.policy.CorrectionTimeout)
		defer cancel()
	}
	return v.gen.GenerateText(cctx,
		"You revise answers from a construction cost advisor so they stay consistent with the facts already established in the conversation.",
		instruction,
	)
}

func submatchTokens(matches [][]string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

func tokenBounds(tokens []string) (int, int, bool) {
	lo, hi := 0, 0
	found := false
	for _, t := range tokens {
		v, ok := priceValue(t)
		if !ok {
			continue
		}
		if !found {
			lo, hi = v, v
			found = true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, found
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
