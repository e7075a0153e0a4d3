package services

import "strings"

// QueryGate screens queries before any generation happens: off-topic chatter,
// plain greetings, and out-of-service-area requests each get a canned reply
// instead of a model call.
type QueryGate struct {
	vocab *Vocabulary
	loc   *LocationNormalizer
}

func NewQueryGate(vocab *Vocabulary, loc *LocationNormalizer) *QueryGate {
	return &QueryGate{vocab: vocab, loc: loc}
}

var greetings = []string{
	"hi", "hello", "hey", "hola", "good morning", "good afternoon",
	"good evening", "howdy", "yo",
}

// IsGreeting reports whether the query is a bare salutation with no
// substantive content.
func (g *QueryGate) IsGreeting(query string) bool {
	s := strings.ToLower(strings.TrimSpace(query))
	s = strings.Trim(s, ".,!?")
	if s == "" {
		return false
	}
	for _, w := range greetings {
		if s == w || s == w+" there" {
			return true
		}
	}
	return false
}

// IsConstructionQuery reports whether the query plausibly concerns home
// remodeling. An established conversation topic counts as context, so only
// cold queries are held to the keyword test.
func (g *QueryGate) IsConstructionQuery(query string, hasEstablishedTopic bool) bool {
	if hasEstablishedTopic {
		return true
	}
	return containsAny(strings.ToLower(query), g.vocab.ConstructionTopics)
}

// OutOfArea returns the non-serviceable place the query names, or "" when the
// query either names no place or names a supported one. A supported-area
// mention anywhere in the query wins over an out-of-area mention, so "moving
// from Phoenix to San Diego" is serviceable.
func (g *QueryGate) OutOfArea(query string) string {
	ql := strings.ToLower(query)
	if _, ok := g.loc.Normalize(ql); ok {
		return ""
	}
	if city := matchAny(ql, g.vocab.OutOfAreaCities); city != "" {
		return city
	}
	return matchAny(ql, g.vocab.OutOfAreaStates)
}
