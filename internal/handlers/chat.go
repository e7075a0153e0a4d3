package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remodelai/remodel-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type chatRequest struct {
	Content   string `json:"content" binding:"required"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// Chat handles one message turn. A missing session_id starts a new session;
// the minted id is returned so the client can continue the conversation.
func (ch *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Role != "" && req.Role != "user" {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("role must be \"user\""))
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	result, err := ch.chatService.ProcessMessage(c.Request.Context(), sessionID, req.Content)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "chat_failed", err)
		return
	}
	RespondOK(c, result)
}

// History returns the stored message exchange for a session. Unknown
// sessions return an empty list rather than 404, matching the store's
// miss-is-fresh behavior.
func (ch *ChatHandler) History(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	msgs, err := ch.chatService.History(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	RespondOK(c, gin.H{"session_id": sessionID, "messages": msgs})
}
