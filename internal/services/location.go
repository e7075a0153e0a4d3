package services

import "strings"

// LocationNormalizer maps free-text location mentions to one of the supported
// service areas. Matching is substring-based over lower-cased input with the
// longest alias winning.
type LocationNormalizer struct {
	aliases []locationAlias
}

func NewLocationNormalizer(vocab *Vocabulary) *LocationNormalizer {
	return &LocationNormalizer{aliases: vocab.aliasesByLength()}
}

// Normalize returns the canonical service area mentioned in text, or
// ("", false) when none of the known aliases appear. No match is a normal
// outcome, not an error.
func (n *LocationNormalizer) Normalize(text string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}
	for _, a := range n.aliases {
		if containsAlias(s, a.alias) {
			return a.canonical, true
		}
	}
	return "", false
}

// containsAlias is substring containment, except that short codes like "la"
// and "sd" must stand alone as words so "dallas" or "plan" never match.
func containsAlias(s, alias string) bool {
	if len(alias) > 3 {
		return strings.Contains(s, alias)
	}
	for i := 0; i+len(alias) <= len(s); i++ {
		j := strings.Index(s[i:], alias)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(alias)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
