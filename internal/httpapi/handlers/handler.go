package handlers

import (
	"context"

	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/document"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

// OutcomeReader looks up the diagnostics of a detached interaction log.
type OutcomeReader interface {
	Get(ctx context.Context, relayRequestID string) (*chat.Outcome, error)
}

type Handler struct {
	ChatSvc  *chat.Service
	Relay    *chat.Relay
	Docs     document.Generator
	Outcomes OutcomeReader // nil when redis is not configured
	Log      *zap.Logger
}

func NewHandler(svc *chat.Service, relay *chat.Relay, docs document.Generator, outcomes OutcomeReader, log *zap.Logger) *Handler {
	return &Handler{
		ChatSvc:  svc,
		Relay:    relay,
		Docs:     docs,
		Outcomes: outcomes,
		Log:      logging.OrNop(log),
	}
}
