package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/remodelai/remodel-backend/internal/clients/pinecone"
	"github.com/remodelai/remodel-backend/internal/platform/logger"
	"github.com/remodelai/remodel-backend/internal/types"
)

// Embedder is the query-embedding collaborator used for retrieval.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ChatResult is what one processed turn hands back to the transport layer.
type ChatResult struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Summary   string `json:"summary,omitempty"`
}

// ChatService runs the full turn pipeline: gate, retrieve, generate, extract,
// merge, validate, persist.
type ChatService interface {
	ProcessMessage(ctx context.Context, sessionID, content string) (*ChatResult, error)
	History(ctx context.Context, sessionID string) ([]types.ChatMessage, error)
}

type chatService struct {
	log       *logger.Logger
	store     ContextStore
	extractor *FactExtractor
	updater   *ContextUpdateEngine
	validator *ConsistencyValidator
	prompts   *PromptAssembler
	gate      *QueryGate
	gen       Generator
	embedder  Embedder             // nil disables retrieval
	vectors   pinecone.VectorStore // nil disables retrieval

	// Collapses client double-submissions of the same message so a retried
	// POST cannot double-count a turn.
	inflight singleflight.Group
}

const retrievalTopK = 5

func NewChatService(
	baseLog *logger.Logger,
	store ContextStore,
	extractor *FactExtractor,
	updater *ContextUpdateEngine,
	validator *ConsistencyValidator,
	prompts *PromptAssembler,
	gate *QueryGate,
	gen Generator,
	embedder Embedder,
	vectors pinecone.VectorStore,
) ChatService {
	return &chatService{
		log:       baseLog.With("service", "ChatService"),
		store:     store,
		extractor: extractor,
		updater:   updater,
		validator: validator,
		prompts:   prompts,
		gate:      gate,
		gen:       gen,
		embedder:  embedder,
		vectors:   vectors,
	}
}

func (s *chatService) ProcessMessage(ctx context.Context, sessionID, content string) (*ChatResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content required")
	}

	v, err, _ := s.inflight.Do(sessionID+"\x00"+content, func() (interface{}, error) {
		return s.processTurn(ctx, sessionID, content)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChatResult), nil
}

func (s *chatService) History(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	return s.store.History(ctx, sessionID)
}

func (s *chatService) processTurn(ctx context.Context, sessionID, content string) (*ChatResult, error) {
	conv, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	if reply, handled := s.gateReply(content, conv); handled {
		s.recordExchange(ctx, sessionID, content, reply)
		return &ChatResult{Message: reply, SessionID: sessionID, Summary: conv.ConversationSummary}, nil
	}

	snippets := s.retrieve(ctx, content)

	lang := DetectLanguage(content)
	system := s.prompts.BuildSystemPrompt(conv)
	if instr := LanguageInstruction(lang); instr != "" {
		system += "\n\n" + instr
	}
	userTurn := s.prompts.BuildUserTurn(conv, content, snippets)

	draft, err := s.gen.GenerateText(ctx, system, userTurn)
	if err != nil {
		// The user always gets a natural-language answer, even with the
		// generator down.
		s.log.Error("generation failed", "session_id", sessionID, "error", err)
		reply := "I'm sorry, I wasn't able to put together an estimate just now. Please try asking again in a moment."
		s.recordExchange(ctx, sessionID, content, reply)
		return &ChatResult{Message: reply, SessionID: sessionID, Summary: conv.ConversationSummary}, nil
	}

	facts := s.extractor.Extract(content, draft)
	merged, err := s.updater.Merge(ctx, sessionID, facts, content)
	if err != nil {
		// The answer is still good without a persisted merge; validate
		// against the pre-turn state instead of failing the request.
		s.log.Warn("context merge failed; validating against stale context",
			"session_id", sessionID, "error", err)
		merged = conv
	}

	final := stripBoilerplate(s.validator.Validate(ctx, draft, merged, content))

	s.recordExchange(ctx, sessionID, content, final)

	return &ChatResult{
		Message:   final,
		SessionID: sessionID,
		Summary:   merged.ConversationSummary,
	}, nil
}

// gateReply returns a canned reply for queries that should never reach the
// generator. The bool reports whether the query was gated.
func (s *chatService) gateReply(content string, conv *types.ConversationContext) (string, bool) {
	if s.gate.IsGreeting(content) {
		return "Hi! I can help you estimate home remodeling costs in San Diego and Los Angeles. What project are you planning?", true
	}
	if place := s.gate.OutOfArea(content); place != "" {
		return fmt.Sprintf(
			"I can only provide remodeling estimates for San Diego and Los Angeles at this time, so I don't have reliable pricing for %s. If your project is in San Diego or Los Angeles, I'd be glad to help.",
			capitalize(place),
		), true
	}
	hasTopic := conv.ProjectType != "" || conv.Location != ""
	if !s.gate.IsConstructionQuery(content, hasTopic) {
		return "I specialize in home remodeling cost estimates for San Diego and Los Angeles. Ask me about a kitchen, bathroom, room addition, ADU, or garage project and I'll walk you through costs and timelines.", true
	}
	return "", false
}

// retrieve fetches reference snippets for the query. Retrieval is best
// effort: any failure logs and returns nothing.
func (s *chatService) retrieve(ctx context.Context, query string) []string {
	if s.embedder == nil || s.vectors == nil {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		s.log.Warn("query embedding failed; answering without retrieval", "error", err)
		return nil
	}
	docs, err := s.vectors.Search(ctx, vecs[0], retrievalTopK)
	if err != nil {
		s.log.Warn("vector search failed; answering without retrieval", "error", err)
		return nil
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Text != "" {
			out = append(out, d.Text)
		}
	}
	return out
}

func (s *chatService) recordExchange(ctx context.Context, sessionID, query, reply string) {
	err := s.store.AppendMessages(ctx, sessionID,
		types.ChatMessage{Role: "user", Content: query},
		types.ChatMessage{Role: "assistant", Content: reply},
	)
	if err != nil {
		s.log.Warn("failed to append message history", "session_id", sessionID, "error", err)
	}
}

// Generated answers sometimes open with assistant boilerplate that adds no
// information for the user. Stripped post-validation so the validator sees
// the same text the checks ran on.
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(sure|certainly|of course|absolutely)[,!.]\s*`),
	regexp.MustCompile(`(?i)as an ai( language model)?[^.!?]*[.!?]\s*`),
	regexp.MustCompile(`(?i)\s*please consult( with)? (a |local )?(licensed |professional )?contractors?[^.!?]*[.!?]\s*$`),
}

var excessNewlinesRe = regexp.MustCompile(`\n{3,}`)

func stripBoilerplate(text string) string {
	out := text
	for _, re := range boilerplateRes {
		out = re.ReplaceAllString(out, "")
	}
	out = excessNewlinesRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	if out == "" {
		return strings.TrimSpace(text)
	}
	return out
}
