package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/remodelai/remodel-backend/internal/types"
)

// fakeGenerator returns queued responses in order, or err for every call.
type fakeGenerator struct {
	responses []string
	err       error
	calls     int
	lastUser  string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no queued response")
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func newTestValidator(t *testing.T, gen Generator) *ConsistencyValidator {
	t.Helper()
	vocab := newTestVocab(t)
	extractor := NewFactExtractor(vocab, NewLocationNormalizer(vocab), DefaultExtractorConfig())
	return NewConsistencyValidator(newTestLogger(t), gen, extractor, DefaultValidationPolicy())
}

func kitchenContext() *types.ConversationContext {
	conv := types.NewConversationContext("s1")
	conv.ProjectType = "kitchen"
	conv.Location = "San Diego"
	conv.DiscussedPrices["kitchen"] = []string{"25,000", "45,000"}
	conv.Timeline = "8-12 weeks"
	return conv
}

func TestValidateConsistentDraftPassesThrough(t *testing.T) {
	gen := &fakeGenerator{}
	v := newTestValidator(t, gen)

	draft := "A mid-range kitchen remodel here runs $25,000 to $45,000 and takes 8 to 12 weeks."
	got := v.Validate(context.Background(), draft, kitchenContext(), "what will my kitchen cost?")
	if got != draft {
		t.Fatalf("consistent draft was altered: %q", got)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times for a clean draft", gen.calls)
	}
}

func TestValidateCorrectsBudgetContradiction(t *testing.T) {
	corrected := "Staying within your $25,000 to $45,000 budget, expect 8 to 12 weeks."
	gen := &fakeGenerator{responses: []string{corrected}}
	v := newTestValidator(t, gen)

	draft := "A kitchen remodel typically costs $60,000 to $80,000."
	got := v.Validate(context.Background(), draft, kitchenContext(), "what will my kitchen cost?")
	if got != corrected {
		t.Fatalf("got %q, want corrected response", got)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
}

func TestValidateBoundedRetryFallsBackToDraft(t *testing.T) {
	// The correction is just as inconsistent; after one attempt the
	// original draft comes back untouched.
	gen := &fakeGenerator{responses: []string{"It will cost $95,000 to $120,000."}}
	v := newTestValidator(t, gen)

	draft := "A kitchen remodel typically costs $60,000 to $80,000."
	got := v.Validate(context.Background(), draft, kitchenContext(), "what will my kitchen cost?")
	if got != draft {
		t.Fatalf("got %q, want original draft", got)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want exactly 1", gen.calls)
	}
}

func TestValidateGeneratorFailureKeepsDraft(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("upstream down")}
	v := newTestValidator(t, gen)

	draft := "A kitchen remodel typically costs $60,000 to $80,000."
	got := v.Validate(context.Background(), draft, kitchenContext(), "what will my kitchen cost?")
	if got != draft {
		t.Fatalf("got %q, want original draft on generator failure", got)
	}
}

func TestValidateWithinToleranceNotCorrected(t *testing.T) {
	gen := &fakeGenerator{}
	v := newTestValidator(t, gen)

	// Low end off by $3,000 and high end by $5,000: inside tolerance.
	draft := "Expect roughly $22,000 to $50,000 over 8 to 12 weeks."
	got := v.Validate(context.Background(), draft, kitchenContext(), "what will my kitchen cost?")
	if got != draft || gen.calls != 0 {
		t.Fatalf("in-tolerance draft corrected (calls=%d)", gen.calls)
	}
}

func TestValidatePricingQuestionNeedsFigures(t *testing.T) {
	corrected := "A kitchen remodel here runs $25,000 to $45,000."
	gen := &fakeGenerator{responses: []string{corrected}}
	v := newTestValidator(t, gen)

	draft := "Costs depend on many factors; it is hard to say."
	got := v.Validate(context.Background(), draft, kitchenContext(), "how much will it cost?")
	if got != corrected {
		t.Fatalf("got %q, want corrected response with figures", got)
	}

	// Non-pricing questions may answer without figures.
	gen2 := &fakeGenerator{}
	v2 := newTestValidator(t, gen2)
	draft2 := "You will need a city permit before demolition."
	if got := v2.Validate(context.Background(), draft2, kitchenContext(), "do i need permits?"); got != draft2 {
		t.Fatalf("permit answer altered: %q", got)
	}
	if gen2.calls != 0 {
		t.Fatalf("generator called for non-pricing question")
	}
}

func TestValidateTimelineCorrectionFailsTwice(t *testing.T) {
	// Correction comes back just as short; after the single bounded
	// attempt the original short draft is returned, never an error.
	gen := &fakeGenerator{responses: []string{"We can do it in 2 to 3 weeks, around $25,000 to $45,000."}}
	v := newTestValidator(t, gen)

	draft := "Expect 2 to 3 weeks, around $25,000 to $45,000."
	got := v.Validate(context.Background(), draft, kitchenContext(), "how long would that take?")
	if got != draft {
		t.Fatalf("got %q, want original draft", got)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want exactly 1", gen.calls)
	}
}

func TestValidateTimelineConflicts(t *testing.T) {
	corrected := "Plan on 8 to 12 weeks, with costs of $25,000 to $45,000."
	gen := &fakeGenerator{responses: []string{corrected}}
	v := newTestValidator(t, gen)

	draft := "We can wrap this kitchen up in 1 to 2 weeks for $25,000 to $45,000."
	got := v.Validate(context.Background(), draft, kitchenContext(), "how long will my kitchen take?")
	if got != corrected {
		t.Fatalf("got %q, want timeline-corrected response", got)
	}

	// Same short timeline is fine when the user narrowed the scope.
	gen2 := &fakeGenerator{}
	v2 := newTestValidator(t, gen2)
	draft2 := "Swapping the counters takes 1 to 2 weeks, around $4,000 to $8,000."
	conv := kitchenContext()
	conv.DiscussedPrices["kitchen"] = nil
	if got := v2.Validate(context.Background(), draft2, conv, "what if i just replace the countertops?"); got != draft2 {
		t.Fatalf("narrow scope answer altered: %q", got)
	}
	if gen2.calls != 0 {
		t.Fatalf("generator called for narrow scope answer")
	}
}
