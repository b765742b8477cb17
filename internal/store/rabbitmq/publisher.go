package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Publisher hands interaction logs to cmd/worker through a durable queue.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	log      *zap.Logger
	observer chat.OutcomeObserver
	wg       sync.WaitGroup
}

func NewPublisher(url, queue string, log *zap.Logger, observer chat.OutcomeObserver) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "rabbit dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "rabbit channel")
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		queue:    queue,
		log:      logging.OrNop(log),
		observer: observer,
	}, nil
}

// Close waits for in-flight publishes, then closes the channel and connection.
func (p *Publisher) Close() error {
	p.wg.Wait()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishInteraction(ctx context.Context, job chat.InteractionJob) error {
	body, err := EncodeInteraction(job)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Body:          body,
			Timestamp:     time.Now(),
			CorrelationId: job.RelayRequestID,
		},
	)
}

// DispatchInteraction publishes from a goroutine so the relay never waits
// on the broker.
func (p *Publisher) DispatchInteraction(job chat.InteractionJob) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		start := time.Now()
		err := p.PublishInteraction(context.Background(), job)
		o := chat.Outcome{
			RelayRequestID: job.RelayRequestID,
			Status:         chat.OutcomeQueued,
			DurationMS:     time.Since(start).Milliseconds(),
			At:             time.Now().UTC(),
		}
		if err != nil {
			o.Status = chat.OutcomeFailed
			o.Error = err.Error()
			p.log.Warn("publish interaction failed", zap.String("request_id", job.RelayRequestID), zap.Error(err))
		}
		if p.observer != nil {
			p.observer.ObserveInteraction(context.Background(), o)
		}
	}()
}
