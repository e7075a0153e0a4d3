package services

import (
	"strings"

	"github.com/remodelai/remodel-backend/internal/types"
)

// PromptAssembler renders the belief state into the strings fed to the
// generator: a system prompt stating the assistant's role and constraints,
// and a per-turn context preamble restating established facts.
type PromptAssembler struct{}

func NewPromptAssembler() *PromptAssembler {
	return &PromptAssembler{}
}

// BuildSystemPrompt returns the generator's standing instructions, with the
// conversation summary injected when one exists so the generator sees the
// established facts even before the preamble.
func (a *PromptAssembler) BuildSystemPrompt(conv *types.ConversationContext) string {
	var b strings.Builder
	b.WriteString("You are a construction cost advisor for home remodeling projects in San Diego and Los Angeles, California. ")
	b.WriteString("Give specific dollar figures and realistic timelines based on local market rates. ")
	b.WriteString("Stay consistent with any budget range, timeline, or project details already established in the conversation. ")
	b.WriteString("If the user asks about locations outside San Diego or Los Angeles, explain that estimates are only available for those two metro areas.")
	if conv != nil && conv.ConversationSummary != "" {
		b.WriteString("\n\nIMPORTANT CONTEXT: ")
		b.WriteString(conv.ConversationSummary)
		b.WriteString(" Do not contradict these established facts.")
	}
	return b.String()
}

// BuildContextPreamble renders established facts as a short prefix for the
// user turn. Empty when nothing has been established yet.
func (a *PromptAssembler) BuildContextPreamble(conv *types.ConversationContext) string {
	if conv == nil {
		return ""
	}
	var parts []string
	if conv.ProjectType != "" {
		label := strings.ReplaceAll(conv.ProjectType, "_", " ")
		if conv.Location != "" {
			parts = append(parts, "we are discussing a "+label+" remodel in "+conv.Location)
		} else {
			parts = append(parts, "we are discussing a "+label+" remodel")
		}
	} else if conv.Location != "" {
		parts = append(parts, "the project is located in "+conv.Location)
	}
	if br := conv.BudgetRange; br != nil {
		parts = append(parts, "the budget range discussed is $"+formatDollars(br.Min)+" to $"+formatDollars(br.Max))
	}
	if conv.Timeline != "" {
		parts = append(parts, "the expected timeline is "+conv.Timeline)
	}
	if len(conv.SpecificFeatures) > 0 {
		parts = append(parts, "requested features include "+strings.Join(firstN(conv.SpecificFeatures, 5), ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Context: " + capitalize(strings.Join(parts, "; ")) + "."
}

// BuildUserTurn combines the preamble, any retrieved reference snippets, and
// the raw query into the final user-turn payload.
func (a *PromptAssembler) BuildUserTurn(conv *types.ConversationContext, query string, snippets []string) string {
	var b strings.Builder
	if pre := a.BuildContextPreamble(conv); pre != "" {
		b.WriteString(pre)
		b.WriteString("\n\n")
	}
	if len(snippets) > 0 {
		b.WriteString("Reference pricing data:\n")
		for _, s := range snippets {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(query)
	return b.String()
}
