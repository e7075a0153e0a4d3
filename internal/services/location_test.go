package services

import "testing"

func newTestVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := LoadVocabulary()
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	return v
}

func TestNormalizeKnownAliases(t *testing.T) {
	n := NewLocationNormalizer(newTestVocab(t))

	cases := []struct {
		in   string
		want string
	}{
		{"i'm remodeling my kitchen in san diego", "San Diego"},
		{"we just bought a place in chula vista", "San Diego"},
		{"moving to la jolla next month", "San Diego"},
		{"how much does a kitchen cost in los angeles", "Los Angeles"},
		{"our house is in santa monica", "Los Angeles"},
		{"thinking about an adu in pasadena", "Los Angeles"},
		{"what about LA?", "Los Angeles"},
		{"prices in SD please", "San Diego"},
	}
	for _, tc := range cases {
		got, ok := n.Normalize(tc.in)
		if !ok {
			t.Fatalf("Normalize(%q) found nothing, want %q", tc.in, tc.want)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeNoMatch(t *testing.T) {
	n := NewLocationNormalizer(newTestVocab(t))

	for _, in := range []string{
		"",
		"how much does a kitchen remodel cost",
		"my cousin lives in dallas",     // "la" inside dallas must not match
		"we need to plan the layout",    // "la" inside plan
		"what does the plaster cost",    // "la" inside plaster
		"the sliding door is very nice", // "sd" never appears as a word
	} {
		if got, ok := n.Normalize(in); ok {
			t.Fatalf("Normalize(%q) = %q, want no match", in, got)
		}
	}
}

func TestNormalizeLongestAliasWins(t *testing.T) {
	n := NewLocationNormalizer(newTestVocab(t))

	// "la mesa" is a San Diego suburb; the bare "la" alias must not
	// shadow it.
	got, ok := n.Normalize("our house in la mesa needs a new bathroom")
	if !ok || got != "San Diego" {
		t.Fatalf("Normalize(la mesa) = %q ok=%v, want San Diego", got, ok)
	}
}
