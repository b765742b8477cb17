package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type generateDocReq struct {
	InputsJSON json.RawMessage `json:"inputs_json"`
}

// GenerateDoc returns the placeholder document URL. The body is optional.
func (h *Handler) GenerateDoc(c *gin.Context) {
	var req generateDocReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	url, err := h.Docs.Generate(c.Request.Context(), req.InputsJSON)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, gin.H{"error": msgInternal, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_url": url})
}
