// Package worker runs detached tasks on a fixed set of goroutines fed by a
// bounded queue.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("worker: pool closed")

type Options struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type Pool struct {
	opts   Options
	log    *zap.Logger
	tasks  chan func(ctx context.Context)
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewPool(opts Options, log *zap.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	p := &Pool{
		opts:  opts,
		log:   logging.OrNop(log),
		tasks: make(chan func(ctx context.Context), opts.QueueSize),
	}

	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.run(i)
	}
	return p
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.exec(workerID, task)
	}
}

func (p *Pool) exec(workerID int, task func(ctx context.Context)) {
	ctx := context.Background()
	if p.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// Submit enqueues task without blocking. It reports false when the queue is
// full or the pool is closed.
func (p *Pool) Submit(task func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish, or for
// ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
