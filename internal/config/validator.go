package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"surveyflow/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateReference(cfg.Reference); err != nil {
		errors = append(errors, err)
	}

	if err := validateStore(cfg.Store); err != nil {
		errors = append(errors, err)
	}

	if err := validateIngestion(cfg.Ingestion); err != nil {
		errors = append(errors, err)
	}

	if err := validateDeduplication(cfg.Deduplication); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
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

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %q (supported: kafka)", cfg.Type),
		}
	}

	if err := validateKafka(cfg.Kafka); err != nil {
		return err
	}

	if cfg.Connect.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "broker.connect.max_attempts",
			Message: "at least one connection attempt is required",
		}
	}

	if cfg.Connect.RetryDelay < 0 {
		return &ValidationError{
			Field:   "broker.connect.retry_delay",
			Message: "retry_delay must be non-negative",
		}
	}

	if cfg.Reconnect.Backoff <= 0 {
		return &ValidationError{
			Field:   "broker.reconnect.backoff",
			Message: "backoff must be positive",
		}
	}

	if cfg.Reconnect.MaxBackoff > 0 && cfg.Reconnect.MaxBackoff < cfg.Reconnect.Backoff {
		return &ValidationError{
			Field:   "broker.reconnect.max_backoff",
			Message: "max_backoff must be greater than or equal to backoff",
		}
	}

	return nil
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

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "broker.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.CommitInterval <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.commit_interval",
			Message: "commit_interval must be positive (offsets are committed periodically)",
		}
	}

	return nil
}

func validateReference(cfg ReferenceConfig) error {
	if cfg.Path == "" {
		return &ValidationError{
			Field:   "reference.path",
			Message: "reference dataset path is required",
		}
	}

	if utf8.RuneCountInString(cfg.Delimiter) != 1 {
		return &ValidationError{
			Field:   "reference.delimiter",
			Message: fmt.Sprintf("delimiter must be a single character, got %q", cfg.Delimiter),
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return &ValidationError{
			Field:   "reference.cache.ttl",
			Message: "ttl must be positive when the cache is enabled",
		}
	}

	return nil
}

func validateStore(cfg StoreConfig) error {
	switch cfg.Driver {
	case constants.DriverSQLite:
		if cfg.Path == "" {
			return &ValidationError{
				Field:   "store.path",
				Message: "SQLite database path is required",
			}
		}
	case constants.DriverPostgres:
		if cfg.DSN == "" {
			return &ValidationError{
				Field:   "store.dsn",
				Message: "PostgreSQL DSN is required",
			}
		}
	default:
		return &ValidationError{
			Field:   "store.driver",
			Message: fmt.Sprintf("unknown store driver: %q (supported: sqlite, postgres)", cfg.Driver),
		}
	}

	if strings.TrimSpace(cfg.Table) == "" {
		return &ValidationError{
			Field:   "store.table",
			Message: "table name is required",
		}
	}

	return nil
}

func validateIngestion(cfg IngestionConfig) error {
	switch strings.ToLower(cfg.MissingReferencePolicy) {
	case constants.MissingReferenceSkip, constants.MissingReferenceError:
	default:
		return &ValidationError{
			Field:   "ingestion.missing_reference_policy",
			Message: fmt.Sprintf("invalid policy: %s (valid: skip, error)", cfg.MissingReferencePolicy),
		}
	}

	if cfg.ErrorLogBurst < 0 {
		return &ValidationError{
			Field:   "ingestion.error_log_burst",
			Message: "error_log_burst must be non-negative",
		}
	}

	return nil
}

func validateDeduplication(cfg DeduplicationConfig) error {
	switch strings.ToLower(cfg.Mode) {
	case constants.DedupModeNone:
		return nil
	case constants.DedupModeRedis:
	default:
		return &ValidationError{
			Field:   "deduplication.mode",
			Message: fmt.Sprintf("invalid mode: %s (valid: none, redis)", cfg.Mode),
		}
	}

	if cfg.Redis.Host == "" {
		return &ValidationError{
			Field:   "deduplication.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return &ValidationError{
			Field:   "deduplication.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Redis.Port),
		}
	}

	if cfg.TTL <= 0 {
		return &ValidationError{
			Field:   "deduplication.ttl",
			Message: "TTL must be positive",
		}
	}

	validOnError := map[string]bool{
		constants.DedupOnErrorAllow: true, constants.DedupOnErrorFail: true,
	}
	if !validOnError[strings.ToLower(cfg.OnRedisError)] {
		return &ValidationError{
			Field:   "deduplication.on_redis_error",
			Message: fmt.Sprintf("invalid on_redis_error value: %s (valid: allow, fail)", cfg.OnRedisError),
		}
	}

	return nil
}
