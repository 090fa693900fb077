package constants

import "time"

const (
	ServiceName = "indexer-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	// Archive files are named ArchiveFilePrefix + token + ArchiveFileSuffix.
	ArchiveFilePrefix = "record"
	ArchiveFileSuffix = ".json"
)

const (
	RunLogKeyPrefix    = "indexer:run:"
	RunLogTable        = "index_runs"
	MappingCollection  = "mappings"
	DefaultMongoDBName = "indexer"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

const (
	DLQReasonKey       = "dlq_reason"
	DLQSourceTopicKey  = "dlq_source_topic"
	DLQTimestampKey    = "dlq_timestamp"
	RejectedByKey      = "rejected_by"
	DLQReasonExhausted = "max_retries_exceeded"
	DLQReasonPanic     = "panic"
)

const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageIdentify  = "identify"
	StageArchive   = "archive"
	StagePublish   = "publish"
)
