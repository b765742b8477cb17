package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/chat"
)

// InteractionMessage is the wire body of a queued interaction log.
type InteractionMessage struct {
	chat.InteractionJob
}

func EncodeInteraction(job chat.InteractionJob) ([]byte, error) {
	b, err := json.Marshal(InteractionMessage{InteractionJob: job})
	if err != nil {
		return nil, apperr.Serialization("encode interaction message", err)
	}
	return b, nil
}

func DecodeInteraction(body []byte) (chat.InteractionJob, error) {
	var m InteractionMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return chat.InteractionJob{}, apperr.Serialization("decode interaction message", err)
	}
	return m.InteractionJob, nil
}

// Process handles one delivery body. Any error means the delivery should be
// nacked without requeue.
func Process(ctx context.Context, logger chat.InteractionLogger, obs chat.OutcomeObserver, body []byte) error {
	job, err := DecodeInteraction(body)
	if err != nil {
		return err
	}
	return chat.RunInteraction(ctx, logger, obs, job)
}
