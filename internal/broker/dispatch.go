package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/logger"
	apperrors "indexer/pkg/errors"
	"indexer/pkg/metrics"
	"indexer/pkg/models"
	"indexer/pkg/retry"
)

var errRunFailed = errors.New("notification run failed")

// Dispatcher decides what happens to a consumed notification once the
// handler has classified it. ACCEPTED needs nothing further. REJECTED is
// forwarded to the reject topic when one is configured. FAILED is retried
// and then parked on the DLQ. The caller commits the message in every case.
type Dispatcher struct {
	handler     Handler
	producer    Producer
	rejectTopic string
	dlqTopic    string
	policy      retry.Policy
	serviceName string
	logger      logger.Logger
}

type DispatcherConfig struct {
	Handler     Handler
	Producer    Producer
	RejectTopic string
	DLQTopic    string
	Retry       config.RetryConfig
	ServiceName string
	Logger      logger.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = logger.NopLogger()
	}
	return &Dispatcher{
		handler:     cfg.Handler,
		producer:    cfg.Producer,
		rejectTopic: cfg.RejectTopic,
		dlqTopic:    cfg.DLQTopic,
		policy:      policyFromConfig(cfg.Retry),
		serviceName: cfg.ServiceName,
		logger:      log,
	}
}

func policyFromConfig(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	return policy
}

// Dispatch returns the final outcome. A non-nil error means a side channel
// (reject topic or DLQ) could not be written, or ctx ended mid-retry.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification, sourceTopic string) (models.Outcome, error) {
	models.Normalize(&n)

	outcome := models.OutcomeFailed
	var lastErr error
	panicked := false

	err := retry.RetryWithCallback(ctx, d.policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = apperrors.RecoverPanic(r)
				lastErr = err
				d.logger.ErrorwCtx(ctx, "Panic recovered during notification handling",
					"error", err,
					"topic", sourceTopic,
				)
			}
		}()
		outcome = d.handler(ctx, n)
		if outcome == models.OutcomeFailed {
			lastErr = errRunFailed
			return errRunFailed
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(d.serviceName, sourceTopic).Inc()
		d.logger.WarnwCtx(ctx, "Retrying notification",
			"attempt", attempt,
			"max_attempts", d.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", sourceTopic,
		)
	})

	if err == nil {
		if outcome == models.OutcomeRejected {
			return outcome, d.forwardRejected(ctx, n, sourceTopic)
		}
		return outcome, nil
	}

	if ctx.Err() != nil {
		return models.OutcomeFailed, ctx.Err()
	}
	if lastErr == nil {
		lastErr = err
	}
	reason := constants.DLQReasonExhausted
	if panicked {
		reason = constants.DLQReasonPanic
	}
	return models.OutcomeFailed, d.sendToDLQ(ctx, n, lastErr, sourceTopic, reason)
}

func (d *Dispatcher) forwardRejected(ctx context.Context, n models.Notification, sourceTopic string) error {
	if d.producer == nil || d.rejectTopic == "" {
		return nil
	}

	forwarded := n.Clone()
	if forwarded.Metadata == nil {
		forwarded.Metadata = make(map[string]string)
	}
	forwarded.Metadata[constants.RejectedByKey] = d.serviceName

	if err := d.producer.Publish(ctx, d.rejectTopic, forwarded); err != nil {
		return fmt.Errorf("failed to forward rejected notification: %w", err)
	}
	metrics.RejectedForwardedTotal.WithLabelValues(d.serviceName, sourceTopic).Inc()
	return nil
}

func (d *Dispatcher) sendToDLQ(ctx context.Context, n models.Notification, cause error, sourceTopic, reason string) error {
	if d.producer == nil || d.dlqTopic == "" {
		d.logger.WarnwCtx(ctx, "No DLQ configured, dropping failed notification",
			"topic", sourceTopic,
			"error", cause,
		)
		return nil
	}

	parked := n.Clone()
	if parked.Metadata == nil {
		parked.Metadata = make(map[string]string)
	}
	parked.Metadata[constants.DLQReasonKey] = cause.Error()
	parked.Metadata[constants.DLQSourceTopicKey] = sourceTopic
	parked.Metadata[constants.DLQTimestampKey] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := d.producer.Publish(ctx, d.dlqTopic, parked); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(d.serviceName, sourceTopic, reason).Inc()
	d.logger.InfowCtx(ctx, "Notification sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", d.dlqTopic,
		"reason", cause.Error(),
	)
	return nil
}
