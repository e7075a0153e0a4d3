package services

import "strings"

// Token heuristics for the two non-English languages the assistant answers
// in. Counting stopword hits beats importing a full language-id model for
// queries this short.
var (
	spanishTokens = []string{
		"el", "la", "los", "las", "de", "que", "es", "en", "un", "una",
		"para", "con", "por", "como", "pero", "cuanto", "cuánto", "cuesta",
		"remodelar", "cocina", "baño", "casa", "precio", "costo",
	}
	frenchTokens = []string{
		"le", "la", "les", "de", "des", "que", "est", "en", "un", "une",
		"pour", "avec", "par", "comme", "mais", "combien", "coûte", "coute",
		"rénover", "renover", "cuisine", "salle", "maison", "prix", "coût",
	}
)

const languageMinHits = 3

// DetectLanguage returns "es", "fr", or "en" for a query. English is the
// default on any ambiguity.
func DetectLanguage(query string) string {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return "en"
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,;:!?¿¡\"'")] = true
	}

	es, fr := 0, 0
	for _, t := range spanishTokens {
		if set[t] {
			es++
		}
	}
	for _, t := range frenchTokens {
		if set[t] {
			fr++
		}
	}

	if es >= languageMinHits && es > fr {
		return "es"
	}
	if fr >= languageMinHits && fr > es {
		return "fr"
	}
	return "en"
}

// LanguageInstruction returns the generator instruction for non-English
// queries, or "" for English.
func LanguageInstruction(lang string) string {
	switch lang {
	case "es":
		return "Respond entirely in Spanish."
	case "fr":
		return "Respond entirely in French."
	default:
		return ""
	}
}
