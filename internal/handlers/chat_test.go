package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remodelai/remodel-backend/internal/services"
	"github.com/remodelai/remodel-backend/internal/types"
)

type fakeChatService struct {
	lastSessionID string
	lastContent   string
	history       []types.ChatMessage
}

func (f *fakeChatService) ProcessMessage(ctx context.Context, sessionID, content string) (*services.ChatResult, error) {
	f.lastSessionID = sessionID
	f.lastContent = content
	return &services.ChatResult{Message: "ok", SessionID: sessionID}, nil
}

func (f *fakeChatService) History(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	return f.history, nil
}

func newTestRouter(svc services.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewChatHandler(svc)
	r := gin.New()
	r.POST("/api/v1/chat", h.Chat)
	r.GET("/api/v1/chat/:session_id/history", h.History)
	return r
}

func TestChatMintsSessionID(t *testing.T) {
	svc := &fakeChatService{}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var res services.ChatResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(res.SessionID); err != nil {
		t.Fatalf("minted session id %q is not a uuid", res.SessionID)
	}
	if svc.lastContent != "hello" {
		t.Fatalf("content = %q", svc.lastContent)
	}
}

func TestChatReusesProvidedSessionID(t *testing.T) {
	svc := &fakeChatService{}
	r := newTestRouter(svc)

	id := uuid.NewString()
	body := `{"content":"hello","session_id":"` + id + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if svc.lastSessionID != id {
		t.Fatalf("session id = %q, want %q", svc.lastSessionID, id)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	r := newTestRouter(&fakeChatService{})

	cases := []string{
		`{}`,                                          // missing content
		`{"content":"hi","session_id":"not-a-uuid"}`,  // malformed session id
		`{"content":"hi","role":"assistant"}`,         // wrong role
	}
	for _, body := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	svc := &fakeChatService{history: []types.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/"+uuid.NewString()+"/history", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var res struct {
		SessionID string              `json:"session_id"`
		Messages  []types.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("messages = %+v", res.Messages)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/not-a-uuid/history", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed session id: status = %d, want 400", w.Code)
	}
}
