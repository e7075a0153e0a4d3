package services

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var vocabYAML []byte

// Vocabulary holds the keyword and alias tables driving fact extraction and
// query gating. Loaded once from the embedded vocab.yaml.
type Vocabulary struct {
	Version int `yaml:"version"`

	Locations []struct {
		Canonical string   `yaml:"canonical"`
		Aliases   []string `yaml:"aliases"`
	} `yaml:"locations"`

	ProjectTypes []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"project_types"`

	Features           []string `yaml:"features"`
	SwitchIntent       []string `yaml:"switch_intent"`
	NarrowScope        []string `yaml:"narrow_scope"`
	PricingQuestion    []string `yaml:"pricing_question"`
	PerUnitMarkers     []string `yaml:"per_unit_markers"`
	ConstructionTopics []string `yaml:"construction_topics"`
	OutOfAreaCities    []string `yaml:"out_of_area_cities"`
	OutOfAreaStates    []string `yaml:"out_of_area_states"`
}

func LoadVocabulary() (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(vocabYAML, &v); err != nil {
		return nil, fmt.Errorf("parse vocab.yaml: %w", err)
	}
	if len(v.Locations) == 0 || len(v.ProjectTypes) == 0 {
		return nil, fmt.Errorf("vocab.yaml missing required tables")
	}
	return &v, nil
}

func containsAny(text string, terms []string) bool {
	return matchAny(text, terms) != ""
}

func matchAny(text string, terms []string) string {
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			return t
		}
	}
	return ""
}

type locationAlias struct {
	alias     string
	canonical string
}

// aliasesByLength flattens the alias table sorted longest-first so a suburb
// name is matched before a two-letter code that happens to be its substring.
func (v *Vocabulary) aliasesByLength() []locationAlias {
	out := make([]locationAlias, 0, 32)
	for _, loc := range v.Locations {
		for _, a := range loc.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			out = append(out, locationAlias{alias: a, canonical: loc.Canonical})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].alias) > len(out[j].alias)
	})
	return out
}
