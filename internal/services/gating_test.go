package services

import "testing"

func newTestGate(t *testing.T) *QueryGate {
	t.Helper()
	vocab := newTestVocab(t)
	return NewQueryGate(vocab, NewLocationNormalizer(vocab))
}

func TestIsGreeting(t *testing.T) {
	g := newTestGate(t)

	for _, in := range []string{"hi", "Hello!", "hey there", "Good morning"} {
		if !g.IsGreeting(in) {
			t.Fatalf("IsGreeting(%q) = false", in)
		}
	}
	for _, in := range []string{"", "hi, how much is a kitchen remodel?", "help me plan"} {
		if g.IsGreeting(in) {
			t.Fatalf("IsGreeting(%q) = true", in)
		}
	}
}

func TestIsConstructionQuery(t *testing.T) {
	g := newTestGate(t)

	if !g.IsConstructionQuery("how much does a kitchen remodel cost?", false) {
		t.Fatalf("remodel question rejected")
	}
	if g.IsConstructionQuery("what's the weather like today?", false) {
		t.Fatalf("weather question accepted")
	}
	// An established topic keeps follow-ups in scope even without keywords.
	if !g.IsConstructionQuery("and how long would that take?", true) {
		t.Fatalf("follow-up rejected despite established topic")
	}
}

func TestOutOfArea(t *testing.T) {
	g := newTestGate(t)

	if got := g.OutOfArea("how much is a kitchen remodel in phoenix?"); got != "phoenix" {
		t.Fatalf("OutOfArea = %q, want phoenix", got)
	}
	if got := g.OutOfArea("we're building in texas"); got != "texas" {
		t.Fatalf("OutOfArea = %q, want texas", got)
	}
	if got := g.OutOfArea("how much is a kitchen remodel in san diego?"); got != "" {
		t.Fatalf("supported area flagged: %q", got)
	}
	// A supported-area mention wins over an out-of-area one.
	if got := g.OutOfArea("moving from phoenix to san diego, what would a remodel cost?"); got != "" {
		t.Fatalf("relocation query flagged: %q", got)
	}
	if got := g.OutOfArea("how much does a kitchen remodel cost?"); got != "" {
		t.Fatalf("no-location query flagged: %q", got)
	}
}
