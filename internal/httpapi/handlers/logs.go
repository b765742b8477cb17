package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/chat"
)

var (
	logMessageRequired = []string{chat.FieldChatID, chat.FieldRole, chat.FieldContent}
	logInputsRequired  = []string{chat.FieldChatID, chat.FieldStructuredData}
)

type logMessageReq struct {
	ChatID  flexString `json:"chat_id"`
	Role    string     `json:"role"`
	Content string     `json:"content"`
}

func (h *Handler) LogMessage(c *gin.Context) {
	var req logMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, logMessageRequired, err)
		return
	}

	_, err := h.ChatSvc.LogMessage(c.Request.Context(), string(req.ChatID), req.Role, req.Content)
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindValidation {
		missingFields(c, logMessageRequired, e.Missing)
		return
	}
	if err != nil {
		storageFailure(c, err, "Failed to log message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message logged"})
}

type logInputsReq struct {
	ChatID         flexString      `json:"chat_id"`
	StructuredData json.RawMessage `json:"structured_data_json"`
}

func (h *Handler) LogInputs(c *gin.Context) {
	var req logInputsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailure(c, logInputsRequired, err)
		return
	}

	_, err := h.ChatSvc.LogStructuredInput(c.Request.Context(), string(req.ChatID), req.StructuredData)
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindValidation {
		missingFields(c, logInputsRequired, e.Missing)
		return
	}
	if err != nil {
		storageFailure(c, err, "Failed to log inputs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Inputs logged as document_data"})
}
