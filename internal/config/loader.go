package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"surveyflow/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", constants.DefaultMetricsPort)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.group_id", constants.DefaultGroupID)
	viper.SetDefault("broker.kafka.topic", constants.DefaultTopic)
	viper.SetDefault("broker.kafka.commit_interval", constants.DefaultCommitInterval)
	viper.SetDefault("broker.kafka.min_bytes", constants.DefaultKafkaMinBytes)
	viper.SetDefault("broker.kafka.max_bytes", int(constants.DefaultKafkaMaxBytes))
	viper.SetDefault("broker.kafka.dial_timeout", constants.DefaultKafkaDialTimeout)
	viper.SetDefault("broker.connect.max_attempts", constants.DefaultConnectAttempts)
	viper.SetDefault("broker.connect.retry_delay", constants.DefaultConnectRetryDelay)
	viper.SetDefault("broker.reconnect.backoff", constants.DefaultReconnectBackoff)
	viper.SetDefault("broker.reconnect.max_backoff", constants.DefaultMaxReconnect)

	viper.SetDefault("reference.path", constants.DefaultReferencePath)
	viper.SetDefault("reference.delimiter", ",")
	viper.SetDefault("reference.cache.ttl", constants.DefaultReferenceTTL)

	viper.SetDefault("store.driver", constants.DriverSQLite)
	viper.SetDefault("store.path", constants.DefaultStorePath)
	viper.SetDefault("store.table", constants.DefaultStoreTable)
	viper.SetDefault("store.reset_on_startup", true)

	viper.SetDefault("ingestion.missing_reference_policy", constants.MissingReferenceSkip)
	viper.SetDefault("ingestion.error_log_interval", constants.DefaultErrorLogInterval)
	viper.SetDefault("ingestion.error_log_burst", constants.DefaultErrorLogBurst)

	viper.SetDefault("deduplication.mode", constants.DedupModeNone)
	viper.SetDefault("deduplication.ttl", constants.DefaultDedupTTL)
	viper.SetDefault("deduplication.on_redis_error", constants.DedupOnErrorAllow)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.topic", "BROKER_KAFKA_TOPIC")
	viper.BindEnv("broker.connect.max_attempts", "BROKER_CONNECT_MAX_ATTEMPTS")
	viper.BindEnv("broker.connect.retry_delay", "BROKER_CONNECT_RETRY_DELAY")

	viper.BindEnv("reference.path", "REFERENCE_PATH")

	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("store.dsn", "STORE_DSN")
	viper.BindEnv("store.table", "STORE_TABLE")

	viper.BindEnv("deduplication.mode", "DEDUPLICATION_MODE")
	viper.BindEnv("deduplication.redis.host", "DEDUPLICATION_REDIS_HOST")
	viper.BindEnv("deduplication.redis.port", "DEDUPLICATION_REDIS_PORT")
	viper.BindEnv("deduplication.redis.password", "DEDUPLICATION_REDIS_PASSWORD")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides handles values viper cannot split on its own.
func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
