package config

import (
	"fmt"

	"logscrub/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// applyDefaults fills in the delivery-contract defaults so a minimal
// config file still yields the documented broker semantics.
func applyDefaults(cfg *Config) {
	if cfg.Broker.Kafka.LogsTopic == "" {
		cfg.Broker.Kafka.LogsTopic = constants.DefaultLogsTopic
	}
	if cfg.Broker.Kafka.DLQTopic == "" {
		cfg.Broker.Kafka.DLQTopic = constants.DefaultDLQTopic
	}
	if cfg.Broker.Kafka.AckDeadline == 0 {
		cfg.Broker.Kafka.AckDeadline = constants.DefaultAckDeadline
	}
	if cfg.Broker.Kafka.Retry.MaxAttempts == 0 {
		cfg.Broker.Kafka.Retry.MaxAttempts = constants.DefaultMaxDeliveryAttempts
	}
	if cfg.Broker.Kafka.Retry.InitialInterval == 0 {
		cfg.Broker.Kafka.Retry.InitialInterval = constants.DefaultRetryInitialInterval
	}
	if cfg.Broker.Kafka.Retry.MaxInterval == 0 {
		cfg.Broker.Kafka.Retry.MaxInterval = constants.DefaultRetryMaxInterval
	}
	if cfg.Broker.Kafka.Retry.Multiplier == 0 {
		cfg.Broker.Kafka.Retry.Multiplier = constants.DefaultRetryMultiplier
	}
	if cfg.Processing.MarkerTTLSeconds == 0 {
		cfg.Processing.MarkerTTLSeconds = constants.DefaultMarkerTTLSeconds
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = constants.DefaultHTTPTimeout
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = constants.DefaultHTTPTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateProcessing(cfg.Processing); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds < 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must not be negative",
		}
	}

	if cfg.WriteTimeoutSeconds < 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must not be negative",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.LogsTopic == cfg.DLQTopic {
		return &ValidationError{
			Field:   "broker.kafka.dlq_topic",
			Message: "dlq_topic must differ from logs_topic",
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	if cfg.Retry.InitialInterval < 0 || cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry",
			Message: "retry intervals must not be negative",
		}
	}

	if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be at least initial_interval",
		}
	}

	if cfg.AckDeadline <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.ack_deadline",
			Message: "ack_deadline must be positive",
		}
	}

	return nil
}

func validateProcessing(cfg ProcessingConfig) error {
	if cfg.DelayPerChar < 0 {
		return &ValidationError{
			Field:   "processing.delay_per_char",
			Message: "delay_per_char must not be negative",
		}
	}

	if cfg.MarkerTTLSeconds < 0 {
		return &ValidationError{
			Field:   "processing.marker_ttl_seconds",
			Message: "marker_ttl_seconds must not be negative",
		}
	}

	return nil
}
