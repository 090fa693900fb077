package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"indexer/internal/broker"
	"indexer/internal/config"
	"indexer/internal/logger"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Base owns the config, the logger, the inbound consumer and an ordered list
// of shutdown hooks. Hooks run in reverse registration order, exactly once.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Consumer broker.Consumer

	mu      sync.Mutex
	closers []closer
	closed  bool
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// OnShutdown registers fn to run during Shutdown.
func (b *Base) OnShutdown(name string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closers = append(b.closers, closer{name: name, fn: fn})
}

func (b *Base) InitBroker(serviceName string) error {
	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Consumer = consumer
	b.OnShutdown("consumer", func(context.Context) error { return consumer.Close() })
	return nil
}

func (b *Base) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	closers := b.closers
	b.mu.Unlock()

	b.Logger.Info("Shutting down application...")

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", closers[i].name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
