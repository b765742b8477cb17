package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

// LargeInputChars is the size above which an interaction is still logged but
// flagged with a warning.
const LargeInputChars = 10000

const (
	FieldChatID         = "chat_id"
	FieldRole           = "role"
	FieldContent        = "content"
	FieldStructuredData = "structured_data_json"
	FieldQuery          = "query"
	FieldResponse       = "response"
)

type Service struct {
	repo  *Repo
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewService(repo *Repo, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		log:   logging.OrNop(log),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Service) CreateSession(ctx context.Context) (*Session, error) {
	if err := s.repo.ready(); err != nil {
		return nil, err
	}

	sess := &Session{}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		s.log.Error("create chat session failed", zap.Error(err))
		return nil, err
	}
	s.log.Info("chat session created", zap.String("chat_id", sess.ID))
	return sess, nil
}

// LogMessage appends one message. The timestamp is taken here, not by the
// database.
func (s *Service) LogMessage(ctx context.Context, chatID, role, content string) (*Message, error) {
	var missing []string
	if chatID == "" {
		missing = append(missing, FieldChatID)
	}
	if role == "" {
		missing = append(missing, FieldRole)
	}
	if content == "" {
		missing = append(missing, FieldContent)
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields", missing...)
	}
	return s.insertMessage(ctx, chatID, role, content)
}

// LogStructuredInput stores data as JSON text under the document_data role.
// A nil value, JSON null or an empty string count as absent.
func (s *Service) LogStructuredInput(ctx context.Context, chatID string, data any) (*Message, error) {
	var missing []string
	if chatID == "" {
		missing = append(missing, FieldChatID)
	}
	if isAbsent(data) {
		missing = append(missing, FieldStructuredData)
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields", missing...)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, apperr.Serialization("structured input is not encodable as JSON", err)
	}
	return s.insertMessage(ctx, chatID, RoleDocumentData, string(b))
}

func (s *Service) insertMessage(ctx context.Context, chatID, role, content string) (*Message, error) {
	if err := s.repo.ready(); err != nil {
		return nil, err
	}

	m := &Message{
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		s.log.Error("log message failed", zap.String("chat_id", chatID), zap.String("role", role), zap.Error(err))
		return nil, err
	}
	s.log.Info("message logged", zap.String("chat_id", chatID), zap.String("role", role), zap.Uint64("id", m.ID))
	return m, nil
}

// LogInteraction writes one query/response pair under a fresh request id.
func (s *Service) LogInteraction(ctx context.Context, query, response string) (*InteractionLog, error) {
	requestID := s.newID()
	log := s.log.With(zap.String("log_request_id", requestID))

	var missing []string
	if query == "" {
		missing = append(missing, FieldQuery)
	}
	if response == "" {
		missing = append(missing, FieldResponse)
	}
	if len(missing) > 0 {
		err := apperr.Validation("query and response are required", missing...)
		log.Warn("interaction rejected", zap.Error(err))
		return nil, err
	}
	if err := s.repo.ready(); err != nil {
		return nil, err
	}

	qLen, rLen := utf8.RuneCountInString(query), utf8.RuneCountInString(response)
	if qLen > LargeInputChars || rLen > LargeInputChars {
		log.Warn("large interaction", zap.Int("query_chars", qLen), zap.Int("response_chars", rLen))
	}

	rec := &InteractionLog{
		UserQuery:       query,
		ChatbotResponse: response,
		CreatedAt:       s.now().UTC(),
		RequestID:       requestID,
	}

	start := time.Now()
	if err := s.repo.InsertInteraction(ctx, rec); err != nil {
		fields := []zap.Field{zap.Duration("took", time.Since(start)), zap.Error(err)}
		if e, ok := apperr.As(err); ok {
			fields = append(fields, zap.String("code", e.Code), zap.String("details", e.Details))
		}
		log.Error("interaction insert failed", fields...)
		return nil, err
	}
	log.Info("interaction logged",
		zap.Uint64("id", rec.ID),
		zap.Duration("took", time.Since(start)),
		zap.Int("query_chars", qLen),
		zap.Int("response_chars", rLen),
	)
	return rec, nil
}

// ListMessages returns at most limit messages of a chat, oldest first.
// limit <= 0 returns all of them.
func (s *Service) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if chatID == "" {
		return nil, apperr.Validation("Missing required fields", FieldChatID)
	}
	if err := s.repo.ready(); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID, limit)
}

// DecodeStructuredInput reverses LogStructuredInput.
func DecodeStructuredInput(m *Message, dest any) error {
	if m == nil || m.Role != RoleDocumentData {
		return apperr.Validation("message does not carry structured input", FieldRole)
	}
	if err := json.Unmarshal([]byte(m.Content), dest); err != nil {
		return apperr.Serialization("stored structured input is not valid JSON", err)
	}
	return nil
}

func isAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case json.RawMessage:
		trimmed := bytes.TrimSpace(t)
		switch string(trimmed) {
		case "", "null", `""`, "false":
			return true
		}
		var n json.Number
		if trimmed[0] != '"' && json.Unmarshal(trimmed, &n) == nil {
			f, err := n.Float64()
			return err == nil && f == 0
		}
		return false
	default:
		return false
	}
}
