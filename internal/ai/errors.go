package ai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
)

// classifyError maps a go-openai failure onto the service taxonomy.
// Billing and rate limits are both reported as quota; credential problems
// as authentication; everything else is a plain upstream failure.
func classifyError(err error) error {
	var (
		status int
		code   string
		msg    = err.Error()
	)

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if c, ok := apiErr.Code.(string); ok {
			code = c
		}
		if apiErr.Type != "" && code == "" {
			code = apiErr.Type
		}
		msg = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
	}

	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusTooManyRequests || code == "insufficient_quota" || strings.Contains(lower, "quota"):
		e := apperr.QuotaExceeded(msg, err)
		e.Code = code
		return e
	case status == http.StatusUnauthorized || code == "invalid_api_key" || strings.Contains(lower, "api_key"):
		e := apperr.Authentication(msg, err)
		e.Code = code
		return e
	default:
		e := apperr.Upstream(msg, err)
		e.Code = code
		return e
	}
}
