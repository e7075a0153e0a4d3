package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/remodelai/remodel-backend/internal/platform/logger"
	"github.com/remodelai/remodel-backend/internal/types"
)

// UpdatePolicy holds the merge heuristics. The defaults are tuned constants,
// starting points rather than law.
type UpdatePolicy struct {
	// OutlierFraction: accumulated prices below this share of the maximum
	// are excluded from the budget range (stray per-unit figures).
	OutlierFraction float64
	// OutlierActivationMax: outlier filtering only kicks in once the
	// maximum observed price reaches this, so small sets aren't gutted.
	OutlierActivationMax int
	// SeedSpread: a lone observed price seeds a range of ±this fraction.
	SeedSpread float64
	// TimelineBand: a new timeline replaces the stored one only when its
	// min is at least band*old min and its max at most old max/band.
	TimelineBand float64
}

func DefaultUpdatePolicy() UpdatePolicy {
	return UpdatePolicy{
		OutlierFraction:      0.10,
		OutlierActivationMax: 20000,
		SeedSpread:           0.15,
		TimelineBand:         0.5,
	}
}

// ContextUpdateEngine merges extracted facts into the stored belief state.
// The merge itself is a pure function of (context, facts, query); persistence
// goes through the store's per-key atomic mutate.
type ContextUpdateEngine struct {
	log       *logger.Logger
	store     ContextStore
	extractor *FactExtractor
	policy    UpdatePolicy
}

func NewContextUpdateEngine(baseLog *logger.Logger, store ContextStore, extractor *FactExtractor, policy UpdatePolicy) *ContextUpdateEngine {
	if policy.OutlierFraction <= 0 {
		policy = DefaultUpdatePolicy()
	}
	return &ContextUpdateEngine{
		log:       baseLog.With("service", "ContextUpdateEngine"),
		store:     store,
		extractor: extractor,
		policy:    policy,
	}
}

func (e *ContextUpdateEngine) Merge(ctx context.Context, sessionID string, facts Facts, queryText string) (*types.ConversationContext, error) {
	return e.store.Mutate(ctx, sessionID, func(conv *types.ConversationContext) error {
		e.Apply(conv, facts, queryText)
		return nil
	})
}

// Apply mutates conv in place according to the merge rules. Exported for the
// pure-merge tests; callers outside tests should use Merge.
func (e *ContextUpdateEngine) Apply(conv *types.ConversationContext, facts Facts, queryText string) {
	e.applyLocation(conv, facts.Location, queryText)

	// Project switches are common and low-risk: last detected wins.
	if facts.ProjectType != "" {
		conv.ProjectType = facts.ProjectType
	}

	e.applyPrices(conv, facts.Prices)
	e.applyTimeline(conv, facts.Timeline, queryText)

	for _, f := range facts.Features {
		if !conv.HasFeature(f) {
			conv.SpecificFeatures = append(conv.SpecificFeatures, f)
		}
	}

	conv.ConversationSummary = BuildSummary(conv)
	conv.TurnCount++
}

// applyLocation adopts a detected location on first assignment, and after
// that only when the user explicitly signals a switch. Ambient mentions
// ("my cousin in LA said...") must not move an established location.
func (e *ContextUpdateEngine) applyLocation(conv *types.ConversationContext, detected, queryText string) {
	if detected == "" || detected == conv.Location {
		return
	}
	if conv.Location == "" || e.extractor.HasSwitchIntent(queryText) {
		conv.Location = detected
		return
	}
	e.log.Debug("ignored ambient location mention",
		"session_id", conv.SessionID,
		"established", conv.Location,
		"mentioned", detected,
	)
}

func (e *ContextUpdateEngine) applyPrices(conv *types.ConversationContext, prices []string) {
	if len(prices) == 0 || conv.ProjectType == "" {
		return
	}

	seen := map[string]bool{}
	for _, p := range conv.DiscussedPrices[conv.ProjectType] {
		seen[p] = true
	}
	for _, p := range prices {
		if !seen[p] {
			conv.DiscussedPrices[conv.ProjectType] = append(conv.DiscussedPrices[conv.ProjectType], p)
			seen[p] = true
		}
	}

	conv.BudgetRange = e.computeBudget(conv.DiscussedPrices[conv.ProjectType])
}

// computeBudget derives the budget range from the full accumulated price set
// for the active project type. The set is append-only, so the range can only
// widen turn over turn, except where outlier filtering drops noise.
func (e *ContextUpdateEngine) computeBudget(tokens []string) *types.BudgetRange {
	values := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if v, ok := priceValue(t); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	maxVal := values[0]
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal >= e.policy.OutlierActivationMax {
		threshold := float64(maxVal) * e.policy.OutlierFraction
		kept := values[:0]
		for _, v := range values {
			if float64(v) >= threshold {
				kept = append(kept, v)
			}
		}
		if len(kept) < len(values) {
			e.log.Debug("dropped budget outliers", "kept", len(kept), "dropped", len(values)-len(kept))
		}
		values = kept
	}

	if len(values) == 1 {
		v := values[0]
		spread := float64(v) * e.policy.SeedSpread
		return &types.BudgetRange{
			Min: int(float64(v) - spread),
			Max: int(float64(v) + spread),
		}
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return &types.BudgetRange{Min: lo, Max: hi}
}

// applyTimeline replaces the stored timeline only when the new one is
// plausible: first assignment, within the reasonableness band of the old
// bounds, or the user explicitly narrowed the scope of the job.
func (e *ContextUpdateEngine) applyTimeline(conv *types.ConversationContext, tl *TimelineRange, queryText string) {
	if tl == nil {
		return
	}
	if conv.Timeline == "" {
		conv.Timeline = tl.String()
		return
	}
	current := parseTimelineString(conv.Timeline)
	if current == nil {
		conv.Timeline = tl.String()
		return
	}
	if e.extractor.IsNarrowScope(queryText) {
		conv.Timeline = tl.String()
		return
	}
	band := e.policy.TimelineBand
	if float64(tl.MinWeeks) >= float64(current.MinWeeks)*band &&
		float64(tl.MaxWeeks) <= float64(current.MaxWeeks)/band {
		conv.Timeline = tl.String()
		return
	}
	e.log.Debug("rejected implausible timeline",
		"session_id", conv.SessionID,
		"established", conv.Timeline,
		"detected", tl.String(),
	)
}

// BuildSummary renders the belief state into one deterministic sentence.
// It is a pure function of the other context fields; absent fields are
// omitted rather than placeholder-filled.
func BuildSummary(conv *types.ConversationContext) string {
	var parts []string
	if conv.ProjectType != "" {
		parts = append(parts, capitalize(strings.ReplaceAll(conv.ProjectType, "_", " "))+" remodel")
	}
	if conv.Location != "" {
		parts = append(parts, "in "+conv.Location)
	}
	if br := conv.BudgetRange; br != nil {
		if br.Min == br.Max {
			parts = append(parts, "with budget of $"+formatDollars(br.Min))
		} else {
			parts = append(parts, "with budget range $"+formatDollars(br.Min)+"-$"+formatDollars(br.Max))
		}
	}
	if conv.Timeline != "" {
		parts = append(parts, "over "+conv.Timeline)
	}
	if len(conv.SpecificFeatures) > 0 {
		feat := strings.Join(firstN(conv.SpecificFeatures, 3), ", ")
		if extra := len(conv.SpecificFeatures) - 3; extra > 0 {
			feat += " and " + strconv.Itoa(extra) + " more features"
		}
		parts = append(parts, "including "+feat)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Discussing " + strings.Join(parts, " ") + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func formatDollars(v int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
