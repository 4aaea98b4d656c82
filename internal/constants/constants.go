package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	DefaultLogsTopic = "raw_logs"
	DefaultDLQTopic  = "raw_logs_dlq"
)

// Broker delivery contract: at most DefaultMaxDeliveryAttempts per
// envelope, backoff bounded to [DefaultRetryInitialInterval,
// DefaultRetryMaxInterval], and each attempt must acknowledge within
// DefaultAckDeadline.
const (
	DefaultMaxDeliveryAttempts  = 5
	DefaultRetryInitialInterval = 10 * time.Second
	DefaultRetryMaxInterval     = 600 * time.Second
	DefaultRetryMultiplier      = 2.0
	DefaultAckDeadline          = 600 * time.Second
)

const (
	RedactionPlaceholder = "[REDACTED]"
)

const (
	MarkerKeyPrefix         = "processed:"
	DefaultMarkerTTLSeconds = 86400
)

const (
	DefaultMongoDBName     = "logscrub"
	TenantCollectionPrefix = "tenants."
	TenantCollectionSuffix = ".processed_logs"
)

// Dead-letter Kafka header keys. The DLQ message value is the original
// payload verbatim; all failure context travels in headers.
const (
	HeaderDLQReason       = "dlq_reason"
	HeaderDLQSourceTopic  = "dlq_source_topic"
	HeaderDLQAttempts     = "dlq_attempts"
	HeaderDLQError        = "dlq_error"
	HeaderDLQDeadLettered = "dlq_dead_lettered_at"
)

const (
	DLQReasonMalformedPayload   = "malformed_payload"
	DLQReasonPermanentFailure   = "permanent_failure"
	DLQReasonAttemptsExhausted  = "max_attempts_exceeded"
	DLQReasonAckDeadlineExpired = "ack_deadline_expired"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

const (
	StatusAccepted = "accepted"
)
