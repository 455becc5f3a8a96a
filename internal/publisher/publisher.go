package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian_relay/internal/domain"
)

// DefaultRetention is how long the queue keeps unconsumed messages.
const DefaultRetention = 72 * time.Hour

var (
	ErrQueueCreate  = errors.New("create queue")
	ErrQueuePublish = errors.New("publish message")
)

// Broker is a queue service that can create-or-get a named queue and send
// a text body to it.
type Broker interface {
	Ensure(ctx context.Context, name string, retention time.Duration) (domain.QueueHandle, error)
	Send(ctx context.Context, queue domain.QueueHandle, body []byte) error
	Close() error
}

// Publisher places search envelopes on a durable queue.
type Publisher struct {
	broker    Broker
	retention time.Duration
	logger    *slog.Logger
}

func New(broker Broker, retention time.Duration, logger *slog.Logger) *Publisher {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Publisher{
		broker:    broker,
		retention: retention,
		logger:    logger.With("component", "publisher"),
	}
}

// EnsureQueue creates the queue or returns the existing one with that name.
func (p *Publisher) EnsureQueue(ctx context.Context, name string) (domain.QueueHandle, error) {
	queue, err := p.broker.Ensure(ctx, name, p.retention)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Couldn't create queue named '%s'. %v.", name, err))
		return domain.QueueHandle{}, fmt.Errorf("%w %q: %w", ErrQueueCreate, name, err)
	}

	p.logger.Debug("queue ready", "queue", queue.Name, "url", queue.URL)
	return queue, nil
}

// Publish sends the envelope as a single JSON message. Nothing is retried or
// rolled back on failure.
func (p *Publisher) Publish(ctx context.Context, queue domain.QueueHandle, env domain.PublishEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Failed to store API results in queue %s. %v.", queue.URL, err))
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := p.broker.Send(ctx, queue, body); err != nil {
		p.logger.Error(fmt.Sprintf("Failed to store API results in queue %s. %v.", queue.URL, err))
		return fmt.Errorf("%w to %s: %w", ErrQueuePublish, queue.URL, err)
	}

	p.logger.Info("stored search results in queue",
		"search_term", env.SearchTerm,
		"date_from", derefOr(env.DateFrom, ""),
		"exact_match", env.ExactMatch,
		"id", env.ID,
		"results", len(env.Results),
		"queue", queue.URL,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.broker.Close()
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
