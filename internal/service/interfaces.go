package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"guardian_relay/internal/domain"
)

type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) domain.SearchResult
}

type QueuePublisher interface {
	EnsureQueue(ctx context.Context, name string) (domain.QueueHandle, error)
	Publish(ctx context.Context, queue domain.QueueHandle, env domain.PublishEnvelope) error
}

type RunRecorder interface {
	Record(ctx context.Context, run *domain.Run) error
}
