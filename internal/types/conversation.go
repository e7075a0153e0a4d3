package types

import (
	"encoding/json"
	"time"
)

// BudgetRange is an established whole-project cost band in whole dollars.
type BudgetRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ConversationContext is the belief state for one chat session: the facts
// established so far, used to keep generated answers self-consistent across
// turns. It is owned by the context store and mutated only through the
// update engine.
type ConversationContext struct {
	SessionID           string              `json:"session_id"`
	Location            string              `json:"location,omitempty"`
	ProjectType         string              `json:"project_type,omitempty"`
	BudgetRange         *BudgetRange        `json:"budget_range,omitempty"`
	Timeline            string              `json:"timeline,omitempty"`
	DiscussedPrices     map[string][]string `json:"discussed_prices,omitempty"`
	SpecificFeatures    []string            `json:"specific_features,omitempty"`
	ConversationSummary string              `json:"conversation_summary,omitempty"`
	TurnCount           int                 `json:"turn_count"`
	LastUpdated         time.Time           `json:"last_updated"`
}

func NewConversationContext(sessionID string) *ConversationContext {
	return &ConversationContext{
		SessionID:       sessionID,
		DiscussedPrices: map[string][]string{},
		LastUpdated:     time.Now().UTC(),
	}
}

// Clone returns a deep copy so merge logic can work on a scratch value
// without exposing partially-updated state.
func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.BudgetRange != nil {
		br := *c.BudgetRange
		out.BudgetRange = &br
	}
	out.DiscussedPrices = make(map[string][]string, len(c.DiscussedPrices))
	for k, v := range c.DiscussedPrices {
		out.DiscussedPrices[k] = append([]string(nil), v...)
	}
	out.SpecificFeatures = append([]string(nil), c.SpecificFeatures...)
	return &out
}

func (c *ConversationContext) HasFeature(feature string) bool {
	for _, f := range c.SpecificFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

func MarshalConversationContext(c *ConversationContext) ([]byte, error) {
	return json.Marshal(c)
}

func UnmarshalConversationContext(raw []byte) (*ConversationContext, error) {
	var out ConversationContext
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.DiscussedPrices == nil {
		out.DiscussedPrices = map[string][]string{}
	}
	return &out, nil
}

// ChatMessage is one entry in a session's message history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
