package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
)

const (
	msgInternal    = "Internal server error"
	msgMissing     = "Missing required fields"
	msgQuota       = "OpenAI API quota exceeded. Please check your API key and billing details."
	msgInvalidKey  = "Invalid OpenAI API key. Please check your configuration."
	msgConfigError = "Server configuration error: Missing storage credentials"
)

func fail(c *gin.Context, status int, body gin.H) {
	c.AbortWithStatusJSON(status, body)
}

// missingFields answers a validation failure of the log endpoints.
func missingFields(c *gin.Context, required, missing []string) {
	fail(c, http.StatusBadRequest, gin.H{
		"error":    msgMissing,
		"required": required,
		"missing":  missing,
	})
}

// bindFailure answers a body that did not decode. Only a field of the wrong
// JSON type is reported as missing.
func bindFailure(c *gin.Context, required []string, err error) {
	body := gin.H{"error": msgMissing, "required": required}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		body["missing"] = []string{typeErr.Field}
	}
	fail(c, http.StatusBadRequest, body)
}

// storageFailure answers a non-validation error of a persistence endpoint.
// failMsg is the endpoint's own message ("Failed to log message", ...).
func storageFailure(c *gin.Context, err error, failMsg string) {
	_ = c.Error(err)
	e, ok := apperr.As(err)
	if !ok {
		fail(c, http.StatusInternalServerError, gin.H{"error": msgInternal, "message": err.Error()})
		return
	}
	switch e.Kind {
	case apperr.KindConfiguration:
		fail(c, http.StatusInternalServerError, gin.H{"error": msgConfigError})
	case apperr.KindPersistence, apperr.KindSerialization:
		body := gin.H{"error": failMsg, "details": e.Details}
		if e.Details == "" {
			body["details"] = e.Error()
		}
		if e.Code != "" {
			body["code"] = e.Code
		}
		fail(c, http.StatusInternalServerError, body)
	default:
		fail(c, apperr.HTTPStatus(err), gin.H{"error": msgInternal, "message": e.Message})
	}
}

// flexString accepts a JSON string or number. Older clients send numeric
// chat ids. A numeric zero decodes to "" so it reads as missing.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if v, err := n.Float64(); err == nil && v == 0 {
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}
