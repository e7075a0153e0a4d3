package services

import (
	"reflect"
	"testing"
)

func newTestExtractor(t *testing.T) *FactExtractor {
	t.Helper()
	vocab := newTestVocab(t)
	return NewFactExtractor(vocab, NewLocationNormalizer(vocab), DefaultExtractorConfig())
}

func TestExtractPricesFromResponseOnly(t *testing.T) {
	e := newTestExtractor(t)

	facts := e.Extract(
		"my budget is $90,000, what does a kitchen remodel cost?",
		"A typical kitchen remodel runs $25,000 to $45,000 here.",
	)
	want := []string{"25,000", "45,000"}
	if !reflect.DeepEqual(facts.Prices, want) {
		t.Fatalf("prices = %v, want %v", facts.Prices, want)
	}
}

func TestExtractPricesFiltersSmallAndPerUnit(t *testing.T) {
	e := newTestExtractor(t)

	facts := e.Extract(
		"what about countertops?",
		"Quartz runs $80 per square foot installed, so a full kitchen counter job is usually $4,000 to $8,000. Tile can be $15 a square foot.",
	)
	want := []string{"4,000", "8,000"}
	if !reflect.DeepEqual(facts.Prices, want) {
		t.Fatalf("prices = %v, want %v", facts.Prices, want)
	}

	facts = e.Extract("", "Cabinet hardware is about $12 each.")
	if len(facts.Prices) != 0 {
		t.Fatalf("expected no prices from per-unit-only response, got %v", facts.Prices)
	}
}

func TestExtractPerUnitMarkerAfterLargePrice(t *testing.T) {
	e := newTestExtractor(t)

	facts := e.Extract("", "Premium stone can reach $1,200 per square foot in rare cases.")
	if len(facts.Prices) != 0 {
		t.Fatalf("expected per-unit price rejected regardless of size, got %v", facts.Prices)
	}
}

func TestExtractLocationFromQueryOnly(t *testing.T) {
	e := newTestExtractor(t)

	facts := e.Extract(
		"how much is a bathroom remodel?",
		"In San Diego, bathroom remodels typically run $15,000 to $30,000.",
	)
	if facts.Location != "" {
		t.Fatalf("location from response leaked into facts: %q", facts.Location)
	}

	facts = e.Extract("how much is a bathroom remodel in carlsbad?", "It depends.")
	if facts.Location != "San Diego" {
		t.Fatalf("location = %q, want San Diego", facts.Location)
	}
}

func TestExtractProjectTypeAndFeatures(t *testing.T) {
	e := newTestExtractor(t)

	facts := e.Extract(
		"i want new countertops and an island in my kitchen",
		"New countertops and an island are popular upgrades.",
	)
	if facts.ProjectType != "kitchen" {
		t.Fatalf("project type = %q, want kitchen", facts.ProjectType)
	}
	if !reflect.DeepEqual(facts.Features, []string{"countertops", "island"}) {
		t.Fatalf("features = %v", facts.Features)
	}
}

func TestExtractTimeline(t *testing.T) {
	e := newTestExtractor(t)

	cases := []struct {
		response string
		want     string
	}{
		{"Expect the job to take 8 to 12 weeks.", "8-12 weeks"},
		{"Typically 6-10 weeks start to finish.", "6-10 weeks"},
		{"About a week of prep.", ""},
		{"Call us at 555-1234 weeks... wait, that's a phone number.", ""},
	}
	for _, tc := range cases {
		facts := e.Extract("", tc.response)
		got := ""
		if facts.Timeline != nil {
			got = facts.Timeline.String()
		}
		if got != tc.want {
			t.Fatalf("timeline from %q = %q, want %q", tc.response, got, tc.want)
		}
	}
}

func TestQueryClassifiers(t *testing.T) {
	e := newTestExtractor(t)

	if !e.IsPricingQuestion("how much would that cost?") {
		t.Fatalf("expected pricing question")
	}
	if e.IsPricingQuestion("what permits do I need?") {
		t.Fatalf("permits question misclassified as pricing")
	}
	if !e.HasSwitchIntent("actually the project is in los angeles instead") {
		t.Fatalf("expected switch intent")
	}
	if e.HasSwitchIntent("my cousin in los angeles had one done") {
		t.Fatalf("ambient mention misclassified as switch intent")
	}
	if !e.IsNarrowScope("what if i just replace the countertops?") {
		t.Fatalf("expected narrow scope")
	}
	if e.IsNarrowScope("full gut remodel of the kitchen") {
		t.Fatalf("full remodel misclassified as narrow scope")
	}
}
