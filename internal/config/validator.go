package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// checks collects every failing field so a broken config file is reported in
// one go.
type checks []error

func (c *checks) expect(ok bool, field, format string, args ...any) {
	if !ok {
		*c = append(*c, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

func ValidateStatic(cfg *Config) error {
	var c checks

	c.server(cfg.Server)
	c.broker(cfg.Broker)
	c.database(cfg.Database)
	c.indexer(cfg.Indexer)
	c.mapping(cfg.Mapping)
	c.runLog(cfg.RunLog)
	c.circuitBreaker(cfg.CircuitBreaker)

	if len(c) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(c...))
	}
	return nil
}

func (c *checks) server(cfg ServerConfig) {
	c.expect(validPort(cfg.Port), "server.port", "port must be between 1 and 65535, got %d", cfg.Port)
	c.expect(cfg.ReadTimeoutSeconds > 0, "server.read_timeout_seconds", "read timeout must be positive")
	c.expect(cfg.WriteTimeoutSeconds > 0, "server.write_timeout_seconds", "write timeout must be positive")
}

func (c *checks) broker(cfg BrokerConfig) {
	switch cfg.Type {
	case "":
		c.expect(false, "broker.type", "broker type is required")
	case "kafka":
		c.kafka(cfg.Kafka)
	default:
		c.expect(false, "broker.type", "unknown broker type: %s (supported: kafka)", cfg.Type)
	}
}

func (c *checks) kafka(cfg KafkaConfig) {
	c.expect(len(cfg.Brokers) > 0, "broker.kafka.brokers", "at least one Kafka broker is required")
	for i, b := range cfg.Brokers {
		c.expect(b != "", fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
	}
	c.expect(cfg.GroupID != "", "broker.kafka.group_id", "Kafka consumer group ID is required")
	c.expect(cfg.InputTopic != "", "broker.kafka.input_topic", "input topic is required")
	c.expect(cfg.RejectTopic == "" || cfg.RejectTopic != cfg.InputTopic,
		"broker.kafka.reject_topic", "reject topic must differ from the input topic")
	c.expect(cfg.DLQTopic == "" || cfg.DLQTopic != cfg.InputTopic,
		"broker.kafka.dlq_topic", "DLQ topic must differ from the input topic")

	r := cfg.Retry
	c.expect(r.MaxAttempts >= 0, "broker.kafka.retry.max_attempts", "max_attempts must be non-negative")
	c.expect(r.InitialInterval >= 0, "broker.kafka.retry.initial_interval", "initial_interval must be non-negative")
	c.expect(r.MaxInterval >= 0, "broker.kafka.retry.max_interval", "max_interval must be non-negative")
	c.expect(r.MaxInterval == 0 || r.InitialInterval == 0 || r.MaxInterval >= r.InitialInterval,
		"broker.kafka.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	c.expect(r.Multiplier > 0, "broker.kafka.retry.multiplier", "multiplier must be positive")
}

// Each store is optional and only checked once any of its fields is set.
func (c *checks) database(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" || pg.Port > 0 {
		c.expect(pg.Host != "", "database.postgres.host", "PostgreSQL host is required")
		c.expect(validPort(pg.Port), "database.postgres.port", "port must be between 1 and 65535, got %d", pg.Port)
		c.expect(pg.User != "", "database.postgres.user", "PostgreSQL user is required")
		c.expect(pg.DBName != "", "database.postgres.dbname", "PostgreSQL database name is required")
		c.expect(pg.SSLMode == "" || slices.Contains(sslModes, strings.ToLower(pg.SSLMode)),
			"database.postgres.sslmode", "invalid SSL mode: %s (valid: %s)", pg.SSLMode, strings.Join(sslModes, ", "))
	}

	if rd := cfg.Redis; rd.Host != "" || rd.Port > 0 {
		c.expect(rd.Host != "", "database.redis.host", "Redis host is required")
		c.expect(validPort(rd.Port), "database.redis.port", "port must be between 1 and 65535, got %d", rd.Port)
	}

	if mg := cfg.MongoDB; mg.URI != "" {
		c.expect(strings.HasPrefix(mg.URI, "mongodb://") || strings.HasPrefix(mg.URI, "mongodb+srv://"),
			"database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
	}
}

func (c *checks) indexer(cfg IndexerConfig) {
	c.expect(cfg.HandlerID != "", "indexer.handler_id", "handler identifier is required")
	c.expect(cfg.StorageDir != "", "indexer.storage_dir", "storage directory is required")

	u, err := url.Parse(cfg.ElasticURL)
	c.expect(err == nil && u.Scheme != "" && u.Host != "",
		"indexer.elastic_url", "must be an absolute URL, got %q", cfg.ElasticURL)
	c.expect(cfg.ElasticIndex != "" && !strings.Contains(cfg.ElasticIndex, "/"),
		"indexer.elastic_index", "index name is required and must not contain '/'")

	c.expect(cfg.TemplatePath != "", "indexer.template_path", "template path is required")
	c.expect(cfg.TemplateName != "", "indexer.template_name", "template name is required")
	c.expect(cfg.FetchTimeout > 0, "indexer.fetch_timeout", "fetch timeout must be positive")
	c.expect(cfg.PublishTimeout > 0, "indexer.publish_timeout", "publish timeout must be positive")
}

func (c *checks) mapping(cfg MappingConfig) {
	c.expect(cfg.GemmaLocation == "" || cfg.PythonLocation != "",
		"mapping.python_location", "python interpreter is required when gemma_location is set")
}

func (c *checks) runLog(cfg RunLogConfig) {
	c.expect(cfg.TTLSeconds >= 0, "run_log.ttl_seconds", "TTL must be non-negative")
	c.expect(cfg.HistoryLimit >= 0, "run_log.history_limit", "history limit must be non-negative")
}

func (c *checks) circuitBreaker(cfg CircuitBreakerConfig) {
	c.expect(cfg.FailureRatio >= 0 && cfg.FailureRatio <= 1,
		"circuit_breaker.failure_ratio", "failure ratio must be within [0, 1], got %v", cfg.FailureRatio)
}
