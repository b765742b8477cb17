package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/chat"
)

type fakeLogger struct {
	query, response string
	err             error
}

func (f *fakeLogger) LogInteraction(_ context.Context, query, response string) (*chat.InteractionLog, error) {
	f.query, f.response = query, response
	if f.err != nil {
		return nil, f.err
	}
	return &chat.InteractionLog{ID: 7, UserQuery: query, ChatbotResponse: response, RequestID: "log-1"}, nil
}

type lastOutcome struct{ o chat.Outcome }

func (l *lastOutcome) ObserveInteraction(_ context.Context, o chat.Outcome) { l.o = o }

func TestInteractionWireFormat(t *testing.T) {
	job := chat.InteractionJob{
		RelayRequestID: "req-1",
		UserQuery:      "Hello",
		Response:       "Hi there",
		QueuedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	body, err := EncodeInteraction(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"relay_request_id":"req-1","user_query":"Hello","response":"Hi there","queued_at":"2025-03-01T12:00:00Z"}`, string(body))

	got, err := DecodeInteraction(body)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = DecodeInteraction([]byte("{"))
	assert.True(t, apperr.Is(err, apperr.KindSerialization))
}

func TestProcess(t *testing.T) {
	body, err := EncodeInteraction(chat.InteractionJob{RelayRequestID: "req-1", UserQuery: "Hello", Response: "Hi there"})
	require.NoError(t, err)

	lg := &fakeLogger{}
	obs := &lastOutcome{}
	require.NoError(t, Process(context.Background(), lg, obs, body))
	assert.Equal(t, "Hello", lg.query)
	assert.Equal(t, chat.OutcomeLogged, obs.o.Status)
	assert.Equal(t, "log-1", obs.o.LogRequestID)

	lg.err = errors.New("insert failed")
	assert.Error(t, Process(context.Background(), lg, obs, body))
	assert.Equal(t, chat.OutcomeFailed, obs.o.Status)

	assert.Error(t, Process(context.Background(), lg, obs, []byte("not json")))
}

func TestDeadLetterQueue(t *testing.T) {
	assert.Equal(t, "interaction_logs.dlq", DeadLetterQueue("interaction_logs"))
}
