package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/logger"
	"indexer/pkg/logging"
	"indexer/pkg/metrics"
	"indexer/pkg/models"
	"indexer/pkg/tracing"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: constants.ServiceName}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, nil)

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(n.EntityID),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	producer    Producer
	serviceName string
}

// NewKafkaConsumer builds a consumer. A producer for the reject and DLQ
// topics is only created when at least one of them is configured.
func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" || cfg.RejectTopic != "" {
		consumer.producer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler Handler) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	dispatcher := NewDispatcher(DispatcherConfig{
		Handler:     handler,
		Producer:    c.producer,
		RejectTopic: c.cfg.RejectTopic,
		DLQTopic:    c.cfg.DLQTopic,
		Retry:       c.cfg.Retry,
		ServiceName: c.serviceName,
		Logger:      c.logger,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			start := time.Now()
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}
			metrics.IncKafkaMessagesRead(c.serviceName, topic)
			metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(start))

			c.handleMessage(ctx, consumeCtx, dispatcher, m, topic)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) handleMessage(ctx, consumeCtx context.Context, dispatcher *Dispatcher, m kafka.Message, topic string) {
	var n models.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		c.logger.ErrorwCtx(consumeCtx, "Failed to unmarshal notification",
			"error", err,
			"topic", topic,
			"offset", m.Offset,
		)
		c.commit(consumeCtx, m, topic)
		return
	}

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()

	if n.TraceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, n.TraceID)
	}
	msgCtx = logging.WithMessageID(msgCtx, n.ID)
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	outcome, err := dispatcher.Dispatch(msgCtx, n, topic)
	if err != nil {
		c.logger.ErrorwCtx(msgCtx, "Notification disposition incomplete",
			"error", err,
			"outcome", outcome.String(),
			"topic", topic,
		)
		if ctx.Err() != nil {
			return
		}
	}
	c.commit(msgCtx, m, topic)
}

func (c *KafkaConsumer) commit(ctx context.Context, m kafka.Message, topic string) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message",
			"error", err,
			"topic", topic,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.producer != nil {
		if closeErr := c.producer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}
