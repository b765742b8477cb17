package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/store/redisstore"
)

// InteractionOutcome reports what became of the detached log of a relay
// request, keyed by that request's X-Request-ID.
func (h *Handler) InteractionOutcome(c *gin.Context) {
	if h.Outcomes == nil {
		fail(c, http.StatusNotFound, gin.H{"error": "interaction diagnostics are disabled"})
		return
	}

	o, err := h.Outcomes.Get(c.Request.Context(), c.Param("request_id"))
	if errors.Is(err, redisstore.ErrNotFound) {
		fail(c, http.StatusNotFound, gin.H{"error": "interaction outcome not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, gin.H{"error": msgInternal, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}
