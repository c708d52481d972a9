package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Reference      ReferenceConfig      `mapstructure:"reference"`
	Store          StoreConfig          `mapstructure:"store"`
	Ingestion      IngestionConfig      `mapstructure:"ingestion"`
	Deduplication  DeduplicationConfig  `mapstructure:"deduplication"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type BrokerConfig struct {
	Type      string          `mapstructure:"type"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Connect   ConnectConfig   `mapstructure:"connect"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	Topic          string        `mapstructure:"topic"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
}

// ConnectConfig bounds the startup connection attempts.
type ConnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// ReconnectConfig controls the pause after a mid-stream broker failure.
type ReconnectConfig struct {
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type ReferenceConfig struct {
	Path      string               `mapstructure:"path"`
	Delimiter string               `mapstructure:"delimiter"`
	Cache     ReferenceCacheConfig `mapstructure:"cache"`
}

type ReferenceCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type StoreConfig struct {
	Driver         string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path           string `mapstructure:"path"`
	DSN            string `mapstructure:"dsn"`
	Table          string `mapstructure:"table"`
	ResetOnStartup bool   `mapstructure:"reset_on_startup"`
}

type IngestionConfig struct {
	MissingReferencePolicy string        `mapstructure:"missing_reference_policy"` // "skip" or "error"
	ErrorLogInterval       time.Duration `mapstructure:"error_log_interval"`
	ErrorLogBurst          int           `mapstructure:"error_log_burst"`
}

type DeduplicationConfig struct {
	Mode         string        `mapstructure:"mode"` // "none" or "redis"
	TTL          time.Duration `mapstructure:"ttl"`
	OnRedisError string        `mapstructure:"on_redis_error"` // "allow" or "fail"
	Redis        RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
