package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexer/internal/config"
	"indexer/internal/logger"
)

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	var order []string
	b.OnShutdown("tracer", func(context.Context) error {
		order = append(order, "tracer")
		return nil
	})
	b.OnShutdown("postgres", func(context.Context) error {
		order = append(order, "postgres")
		return errors.New("connection reset")
	})
	b.OnShutdown("consumer", func(context.Context) error {
		order = append(order, "consumer")
		return nil
	})

	err := b.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres close error: connection reset")
	assert.Equal(t, []string{"consumer", "postgres", "tracer"}, order)

	assert.NoError(t, b.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestInitBrokerRejectsUnknownType(t *testing.T) {
	b := NewBase(&config.Config{Broker: config.BrokerConfig{Type: "nats"}}, logger.NopLogger())
	assert.Error(t, b.InitBroker("indexer"))
	assert.Nil(t, b.Consumer)
}
