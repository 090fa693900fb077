package broker

import (
	"context"

	"indexer/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, n models.Notification) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler) error
	Close() error
	SetServiceName(name string)
}

// Handler runs one notification through the pipeline and reports its outcome.
type Handler func(ctx context.Context, n models.Notification) models.Outcome
