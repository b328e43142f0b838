// Package outbox forwards confirmed-order events written by the commit
// engine to a message broker.
package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

type Store interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, seq int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
}

// Observer is told about every publish attempt.
type Observer interface {
	ObservePublish(topic string, err error)
}

type Relay struct {
	store     Store
	publisher Publisher
	batchSize int
	interval  time.Duration
	logger    *log.Logger
	observer  Observer
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Relay) {
		r.observer = o
	}
}

func NewRelay(store Store, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce publishes one batch of pending messages in order. It stops at the
// first publish failure so that later messages never overtake it.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	msgs, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	for _, msg := range msgs {
		err := r.publisher.Publish(ctx, msg)
		if r.observer != nil {
			r.observer.ObservePublish(msg.Topic, err)
		}
		if err != nil {
			return sent, fmt.Errorf("publish event %s: %w", msg.EventID, err)
		}
		if err := r.store.MarkSent(ctx, msg.Seq); err != nil {
			return sent, fmt.Errorf("mark event %s sent: %w", msg.EventID, err)
		}
		sent++
	}
	return sent, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Printf("outbox relay started batch=%d interval=%s", r.batchSize, r.interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("outbox relay stopped")
			return nil
		case <-timer.C:
		}

		sent, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Printf("outbox relay error sent=%d err=%v", sent, err)
		} else if sent > 0 {
			r.logger.Printf("outbox relay published=%d", sent)
		}

		next := r.interval
		if err == nil && sent == r.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// LogPublisher writes messages to a logger. It stands in for a broker in
// local runs.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("outbox publish topic=%s key=%s event_id=%s payload=%s", msg.Topic, msg.Key, msg.EventID, msg.Payload)
	return nil
}
