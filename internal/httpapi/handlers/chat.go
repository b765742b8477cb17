package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
)

type chatReq struct {
	Messages []ai.Message `json:"messages"`
}

// Chat relays a conversation to the model. The interaction is logged in the
// background after the reply is known.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Messages == nil {
		fail(c, http.StatusBadRequest, gin.H{"error": "Messages array is required"})
		return
	}

	res, err := h.Relay.Relay(c.Request.Context(), req.Messages)
	if err != nil {
		_ = c.Error(err)
		relayFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": res.Reply,
		"usage":   res.Usage,
	})
}

func relayFailure(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		fail(c, http.StatusInternalServerError, gin.H{"error": msgInternal, "message": err.Error()})
		return
	}
	switch e.Kind {
	case apperr.KindValidation:
		body := gin.H{"error": e.Message}
		if len(e.Missing) > 0 {
			body["missing"] = e.Missing
		}
		fail(c, http.StatusBadRequest, body)
	case apperr.KindQuotaExceeded:
		fail(c, http.StatusTooManyRequests, gin.H{"error": msgQuota, "quota_exceeded": true})
	case apperr.KindAuthentication:
		fail(c, http.StatusUnauthorized, gin.H{"error": msgInvalidKey, "invalid_key": true})
	default:
		fail(c, http.StatusInternalServerError, gin.H{"error": msgInternal, "message": e.Message})
	}
}

func (h *Handler) CreateChat(c *gin.Context) {
	sess, err := h.ChatSvc.CreateSession(c.Request.Context())
	if err != nil {
		storageFailure(c, err, "Failed to create chat session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": sess.ID})
}

// ListMessages returns a chat's log oldest first. ?limit=N caps the result.
func (h *Handler) ListMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), chatID, limit)
	if err != nil {
		storageFailure(c, err, "Failed to list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": msgs})
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
