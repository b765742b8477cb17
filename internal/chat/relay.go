package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

// NoQueryPlaceholder is logged as the user query when the conversation has
// no user message.
const NoQueryPlaceholder = "No query provided"

type RelayResult struct {
	Reply     string
	Usage     openai.Usage
	Model     string
	RequestID string
}

// Relay forwards a conversation to the model and schedules the
// query/response pair for logging without waiting on it.
type Relay struct {
	provider     ai.Provider
	systemPrompt string
	dispatcher   InteractionDispatcher
	log          *zap.Logger
}

func NewRelay(provider ai.Provider, systemPrompt string, dispatcher InteractionDispatcher, log *zap.Logger) *Relay {
	return &Relay{
		provider:     provider,
		systemPrompt: systemPrompt,
		dispatcher:   dispatcher,
		log:          logging.OrNop(log),
	}
}

func (r *Relay) Relay(ctx context.Context, messages []ai.Message) (*RelayResult, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	requestID := logging.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := r.log.With(zap.String("request_id", requestID))

	query := lastUserQuery(messages)
	log.Info("chat request",
		zap.Int("messages", len(messages)),
		zap.String("query_preview", logging.Preview(query, 100)),
	)

	upstream := make([]ai.Message, 0, len(messages)+1)
	if r.systemPrompt != "" {
		upstream = append(upstream, ai.Message{Role: ai.RoleSystem, Content: r.systemPrompt})
	}
	upstream = append(upstream, messages...)

	start := time.Now()
	completion, err := r.provider.Chat(ctx, upstream)
	took := time.Since(start)
	if err != nil {
		log.Error("upstream call failed",
			zap.Duration("took", took),
			zap.String("kind", apperr.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("upstream call completed",
		zap.Duration("took", took),
		zap.String("model", completion.Model),
		zap.Int("response_chars", utf8.RuneCountInString(completion.Content)),
		zap.String("response_preview", logging.Preview(completion.Content, 100)),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
	)

	if r.dispatcher != nil {
		r.dispatcher.DispatchInteraction(InteractionJob{
			RelayRequestID: requestID,
			UserQuery:      query,
			Response:       completion.Content,
			QueuedAt:       time.Now().UTC(),
		})
	}

	return &RelayResult{
		Reply:     completion.Content,
		Usage:     completion.Usage,
		Model:     completion.Model,
		RequestID: requestID,
	}, nil
}

func validateMessages(messages []ai.Message) error {
	if len(messages) == 0 {
		return apperr.Validation("At least one message is required", "messages")
	}
	var missing []string
	for i, m := range messages {
		if m.Role == "" {
			missing = append(missing, fmt.Sprintf("messages[%d].role", i))
		}
		if m.Content == "" {
			missing = append(missing, fmt.Sprintf("messages[%d].content", i))
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Each message requires role and content", missing...)
	}
	return nil
}

func lastUserQuery(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return NoQueryPlaceholder
}
