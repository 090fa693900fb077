package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  port: 9090
broker:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
    group_id: indexer
    input_topic: records
    reject_topic: records_rejected
    dlq_topic: records_dlq
indexer:
  handler_id: elastic-indexer
  storage_dir: /tmp/elastic
  elastic_url: http://localhost:9200/
  elastic_index: kitdm
  template_path: ./templates/record.json.tmpl
  fetch_timeout: 3s
  fail_on_publish_error: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "records_rejected", cfg.Broker.Kafka.RejectTopic)
	assert.Equal(t, "elastic-indexer", cfg.Indexer.HandlerID)
	assert.Equal(t, 3*time.Second, cfg.Indexer.FetchTimeout)
	assert.True(t, cfg.Indexer.FailOnPublishError)
	assert.False(t, cfg.Indexer.FailOnArchiveError)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "record", cfg.Indexer.TemplateName)
	assert.Equal(t, 10*time.Second, cfg.Indexer.PublishTimeout)
	assert.Equal(t, 3, cfg.Broker.Kafka.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Broker.Kafka.Retry.Multiplier)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.RunLog.HistoryLimit)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("INDEXER_HANDLER_ID", "from-env")

	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "from-env", cfg.Indexer.HandlerID)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Broker: BrokerConfig{
			Type: "kafka",
			Kafka: KafkaConfig{
				Brokers:    []string{"localhost:9092"},
				GroupID:    "indexer",
				InputTopic: "records",
				Retry:      RetryConfig{Multiplier: 2},
			},
		},
		Indexer: IndexerConfig{
			HandlerID:      "elastic-indexer",
			StorageDir:     "/tmp/elastic",
			ElasticURL:     "http://localhost:9200",
			ElasticIndex:   "kitdm",
			TemplatePath:   "record.json.tmpl",
			TemplateName:   "record",
			FetchTimeout:   time.Second,
			PublishTimeout: time.Second,
		},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(cfg *Config) {}},
		{name: "bad port", mutate: func(cfg *Config) { cfg.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown broker", mutate: func(cfg *Config) { cfg.Broker.Type = "rabbitmq" }, wantErr: "broker.type"},
		{name: "no brokers", mutate: func(cfg *Config) { cfg.Broker.Kafka.Brokers = nil }, wantErr: "broker.kafka.brokers"},
		{name: "reject equals input", mutate: func(cfg *Config) { cfg.Broker.Kafka.RejectTopic = "records" }, wantErr: "broker.kafka.reject_topic"},
		{name: "missing handler id", mutate: func(cfg *Config) { cfg.Indexer.HandlerID = "" }, wantErr: "indexer.handler_id"},
		{name: "relative elastic url", mutate: func(cfg *Config) { cfg.Indexer.ElasticURL = "localhost:9200" }, wantErr: "indexer.elastic_url"},
		{name: "index with slash", mutate: func(cfg *Config) { cfg.Indexer.ElasticIndex = "a/b" }, wantErr: "indexer.elastic_index"},
		{name: "zero fetch timeout", mutate: func(cfg *Config) { cfg.Indexer.FetchTimeout = 0 }, wantErr: "indexer.fetch_timeout"},
		{name: "bad mongo uri", mutate: func(cfg *Config) {
			cfg.Database.MongoDB = MongoDBConfig{URI: "http://mongo", Database: "indexer"}
		}, wantErr: "database.mongodb.uri"},
		{name: "negative history limit", mutate: func(cfg *Config) { cfg.RunLog.HistoryLimit = -1 }, wantErr: "run_log.history_limit"},
		{name: "dlq equals input", mutate: func(cfg *Config) { cfg.Broker.Kafka.DLQTopic = "records" }, wantErr: "broker.kafka.dlq_topic"},
		{name: "failure ratio above one", mutate: func(cfg *Config) { cfg.CircuitBreaker.FailureRatio = 1.5 }, wantErr: "circuit_breaker.failure_ratio"},
		{name: "gemma without python", mutate: func(cfg *Config) { cfg.Mapping.GemmaLocation = "/opt/gemma.py" }, wantErr: "mapping.python_location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStatic_ReportsEveryField(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Indexer.HandlerID = ""
	cfg.Indexer.StorageDir = ""

	err := ValidateStatic(cfg)
	require.Error(t, err)
	for _, field := range []string{"server.port", "indexer.handler_id", "indexer.storage_dir"} {
		assert.Contains(t, err.Error(), field)
	}

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "indexer.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "elastic-indexer", cfg.Indexer.HandlerID)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, 0.5, cfg.CircuitBreaker.FailureRatio)
	assert.Equal(t, "record-notifications-dlq", cfg.Broker.Kafka.DLQTopic)
}
