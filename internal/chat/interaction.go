package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// InteractionJob is one detached interaction-log write scheduled by the relay.
type InteractionJob struct {
	RelayRequestID string    `json:"relay_request_id"`
	UserQuery      string    `json:"user_query"`
	Response       string    `json:"response"`
	QueuedAt       time.Time `json:"queued_at"`
}

// InteractionDispatcher schedules a job and returns immediately.
type InteractionDispatcher interface {
	DispatchInteraction(job InteractionJob)
}

type InteractionLogger interface {
	LogInteraction(ctx context.Context, query, response string) (*InteractionLog, error)
}

type OutcomeStatus string

const (
	OutcomeQueued  OutcomeStatus = "queued"
	OutcomeLogged  OutcomeStatus = "logged"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeDropped OutcomeStatus = "dropped"
)

// Provisional reports whether a later status may replace s. A worker can
// finish before the publisher reports the hand-off.
func (s OutcomeStatus) Provisional() bool { return s == OutcomeQueued }

// Outcome is what became of a detached job. It is diagnostics only and never
// reaches the caller of the relay.
type Outcome struct {
	RelayRequestID string        `json:"relay_request_id"`
	Status         OutcomeStatus `json:"status"`
	LogRequestID   string        `json:"log_request_id,omitempty"`
	RecordID       uint64        `json:"record_id,omitempty"`
	Error          string        `json:"error,omitempty"`
	DurationMS     int64         `json:"duration_ms"`
	At             time.Time     `json:"at"`
}

type OutcomeObserver interface {
	ObserveInteraction(ctx context.Context, o Outcome)
}

// Observers fans an outcome out to every observer in order.
type Observers []OutcomeObserver

func (obs Observers) ObserveInteraction(ctx context.Context, o Outcome) {
	for _, ob := range obs {
		if ob != nil {
			ob.ObserveInteraction(ctx, o)
		}
	}
}

type LogObserver struct {
	Log *zap.Logger
}

func (l LogObserver) ObserveInteraction(_ context.Context, o Outcome) {
	if l.Log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("request_id", o.RelayRequestID),
		zap.String("status", string(o.Status)),
		zap.Int64("duration_ms", o.DurationMS),
	}
	switch o.Status {
	case OutcomeFailed:
		l.Log.Error("interaction log failed", append(fields, zap.String("error", o.Error))...)
	case OutcomeDropped:
		l.Log.Warn("interaction log dropped", append(fields, zap.String("error", o.Error))...)
	default:
		l.Log.Info("interaction log "+string(o.Status), append(fields,
			zap.String("log_request_id", o.LogRequestID),
			zap.Uint64("record_id", o.RecordID))...)
	}
}

// RunInteraction performs one job and reports the outcome. It is shared by
// the in-process pool and the queue consumer.
func RunInteraction(ctx context.Context, logger InteractionLogger, obs OutcomeObserver, job InteractionJob) error {
	start := time.Now()
	rec, err := logger.LogInteraction(ctx, job.UserQuery, job.Response)

	o := Outcome{
		RelayRequestID: job.RelayRequestID,
		DurationMS:     time.Since(start).Milliseconds(),
		At:             time.Now().UTC(),
	}
	if err != nil {
		o.Status = OutcomeFailed
		o.Error = err.Error()
	} else {
		o.Status = OutcomeLogged
		o.LogRequestID = rec.RequestID
		o.RecordID = rec.ID
	}
	if obs != nil {
		obs.ObserveInteraction(context.WithoutCancel(ctx), o)
	}
	return err
}

// TaskSubmitter is satisfied by worker.Pool.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context)) bool
}

// PoolDispatcher runs jobs on an in-process worker pool. A full pool drops
// the job.
type PoolDispatcher struct {
	pool     TaskSubmitter
	logger   InteractionLogger
	observer OutcomeObserver
}

func NewPoolDispatcher(pool TaskSubmitter, logger InteractionLogger, observer OutcomeObserver) *PoolDispatcher {
	return &PoolDispatcher{pool: pool, logger: logger, observer: observer}
}

func (d *PoolDispatcher) DispatchInteraction(job InteractionJob) {
	ok := d.pool.Submit(func(ctx context.Context) {
		_ = RunInteraction(ctx, d.logger, d.observer, job)
	})
	if ok || d.observer == nil {
		return
	}
	go d.observer.ObserveInteraction(context.Background(), Outcome{
		RelayRequestID: job.RelayRequestID,
		Status:         OutcomeDropped,
		Error:          "dispatch queue full",
		At:             time.Now().UTC(),
	})
}
