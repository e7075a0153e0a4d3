package services

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceTokenRe = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*)`)
	timelineRe   = regexp.MustCompile(`(\d+)\s*(?:to|-)\s*(\d+)\s*weeks?`)
	anyDollarRe  = regexp.MustCompile(`\$\d[\d,.]*`)
)

// TimelineRange is a detected project duration in weeks.
type TimelineRange struct {
	MinWeeks int
	MaxWeeks int
}

func (t TimelineRange) String() string {
	return strconv.Itoa(t.MinWeeks) + "-" + strconv.Itoa(t.MaxWeeks) + " weeks"
}

// Facts is the structured signal extracted from one query/response exchange.
// Every field is optional; an empty Facts is the normal outcome for small talk.
type Facts struct {
	Location    string
	ProjectType string
	Prices      []string // literal price tokens from the response, e.g. "45,000"
	Timeline    *TimelineRange
	Features    []string
}

type ExtractorConfig struct {
	// Prices below this are treated as per-unit noise, not project costs.
	MinSignificantPrice int
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{MinSignificantPrice: 1000}
}

// FactExtractor scans a query/response pair for project facts. It is a pure
// function of its inputs and the vocabulary tables; it never fails, it just
// leaves fields unset.
type FactExtractor struct {
	vocab    *Vocabulary
	loc      *LocationNormalizer
	minPrice int
}

func NewFactExtractor(vocab *Vocabulary, loc *LocationNormalizer, cfg ExtractorConfig) *FactExtractor {
	if cfg.MinSignificantPrice <= 0 {
		cfg.MinSignificantPrice = DefaultExtractorConfig().MinSignificantPrice
	}
	return &FactExtractor{vocab: vocab, loc: loc, minPrice: cfg.MinSignificantPrice}
}

func (e *FactExtractor) Extract(query, response string) Facts {
	ql := strings.ToLower(query)
	rl := strings.ToLower(response)

	var out Facts

	// Location comes from the query only: the user names places, the
	// generator merely echoes them.
	if loc, ok := e.loc.Normalize(ql); ok {
		out.Location = loc
	}

	// First keyword family present in either string wins, in table order.
	for _, pt := range e.vocab.ProjectTypes {
		for _, kw := range pt.Keywords {
			if strings.Contains(ql, kw) || strings.Contains(rl, kw) {
				out.ProjectType = pt.Name
				break
			}
		}
		if out.ProjectType != "" {
			break
		}
	}

	// Prices come from the response only, so user-proposed numbers are not
	// recorded as established facts.
	out.Prices = e.extractPrices(response)

	if tl := parseTimeline(rl); tl != nil {
		out.Timeline = tl
	}

	for _, feature := range e.vocab.Features {
		if strings.Contains(ql, feature) || strings.Contains(rl, feature) {
			out.Features = append(out.Features, feature)
		}
	}

	return out
}

// IsPricingQuestion reports whether the query is evidently asking about cost.
func (e *FactExtractor) IsPricingQuestion(query string) bool {
	return containsAny(strings.ToLower(query), e.vocab.PricingQuestion)
}

// HasSwitchIntent reports whether the query carries an explicit marker that
// the user is deliberately changing an established fact.
func (e *FactExtractor) HasSwitchIntent(query string) bool {
	return containsAny(strings.ToLower(query), e.vocab.SwitchIntent)
}

// IsNarrowScope reports whether the query asks about a partial job (e.g. a
// countertop swap) rather than the full project.
func (e *FactExtractor) IsNarrowScope(query string) bool {
	return containsAny(strings.ToLower(query), e.vocab.NarrowScope)
}

const perUnitWindow = 24

func (e *FactExtractor) extractPrices(response string) []string {
	matches := priceTokenRe.FindAllStringSubmatchIndex(response, -1)
	if len(matches) == 0 {
		return nil
	}
	rl := strings.ToLower(response)

	var out []string
	for _, m := range matches {
		token := response[m[2]:m[3]]
		val, ok := priceValue(token)
		if !ok || val < e.minPrice {
			continue
		}
		// A per-unit marker right after the number means this is a rate,
		// not a whole-project cost.
		end := m[3] + perUnitWindow
		if end > len(rl) {
			end = len(rl)
		}
		if containsAny(rl[m[3]:end], e.vocab.PerUnitMarkers) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func priceValue(token string) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Anything past two years is a number range that happens to precede the word
// "weeks", not a project duration.
const maxTimelineWeeks = 104

func parseTimeline(text string) *TimelineRange {
	m := timelineRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lo, err1 := strconv.Atoi(m[1])
	hi, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || lo <= 0 || hi < lo || hi > maxTimelineWeeks {
		return nil
	}
	return &TimelineRange{MinWeeks: lo, MaxWeeks: hi}
}

func parseTimelineString(stored string) *TimelineRange {
	return parseTimeline(strings.ToLower(stored))
}
