package chat

import (
	"context"

	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/store/dbstore"
)

type Repo struct {
	client dbstore.Client
}

func NewRepo(client dbstore.Client) *Repo {
	return &Repo{client: client}
}

func (r *Repo) ready() error {
	if r == nil || r.client == nil {
		return apperr.Configuration("persistence client is not configured", "storage.url", "storage.secret_key")
	}
	return nil
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.client.Insert(ctx, TableSessions, s)
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.client.Insert(ctx, TableMessages, m)
}

func (r *Repo) InsertInteraction(ctx context.Context, l *InteractionLog) error {
	return r.client.Insert(ctx, TableInteractions, l)
}

// ListMessages returns a chat's messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	var msgs []Message
	err := r.client.Select(ctx, TableMessages, &msgs, dbstore.Query{
		Where: "chat_id = ?",
		Args:  []any{chatID},
		Order: "created_at ASC, id ASC",
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
