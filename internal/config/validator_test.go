package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"surveyflow/internal/constants"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8000, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Broker: BrokerConfig{
			Type: "kafka",
			Kafka: KafkaConfig{
				Brokers:        []string{"kafka:9093"},
				GroupID:        constants.DefaultGroupID,
				Topic:          constants.DefaultTopic,
				CommitInterval: time.Second,
			},
			Connect:   ConnectConfig{MaxAttempts: 10, RetryDelay: 5 * time.Second},
			Reconnect: ReconnectConfig{Backoff: 5 * time.Second, MaxBackoff: time.Minute},
		},
		Reference: ReferenceConfig{Path: "ref.csv", Delimiter: ","},
		Store:     StoreConfig{Driver: constants.DriverSQLite, Path: "out.db", Table: constants.DefaultStoreTable},
		Ingestion: IngestionConfig{MissingReferencePolicy: constants.MissingReferenceSkip},
		Deduplication: DeduplicationConfig{
			Mode: constants.DedupModeNone,
		},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantField string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "port out of range",
			mutate:    func(cfg *Config) { cfg.Server.Port = 70000 },
			wantField: "server.port",
		},
		{
			name:      "unsupported broker",
			mutate:    func(cfg *Config) { cfg.Broker.Type = "rabbitmq" },
			wantField: "broker.type",
		},
		{
			name:      "empty broker address",
			mutate:    func(cfg *Config) { cfg.Broker.Kafka.Brokers = []string{""} },
			wantField: "broker.kafka.brokers[0]",
		},
		{
			name:      "zero connect attempts",
			mutate:    func(cfg *Config) { cfg.Broker.Connect.MaxAttempts = 0 },
			wantField: "broker.connect.max_attempts",
		},
		{
			name:      "max backoff below backoff",
			mutate:    func(cfg *Config) { cfg.Broker.Reconnect.MaxBackoff = time.Second },
			wantField: "broker.reconnect.max_backoff",
		},
		{
			name:      "no commit interval",
			mutate:    func(cfg *Config) { cfg.Broker.Kafka.CommitInterval = 0 },
			wantField: "broker.kafka.commit_interval",
		},
		{
			name:      "multi-character delimiter",
			mutate:    func(cfg *Config) { cfg.Reference.Delimiter = "||" },
			wantField: "reference.delimiter",
		},
		{
			name:      "cache without ttl",
			mutate:    func(cfg *Config) { cfg.Reference.Cache.Enabled = true },
			wantField: "reference.cache.ttl",
		},
		{
			name:      "unknown store driver",
			mutate:    func(cfg *Config) { cfg.Store.Driver = "mysql" },
			wantField: "store.driver",
		},
		{
			name: "postgres without dsn",
			mutate: func(cfg *Config) {
				cfg.Store.Driver = constants.DriverPostgres
			},
			wantField: "store.dsn",
		},
		{
			name:      "invalid missing reference policy",
			mutate:    func(cfg *Config) { cfg.Ingestion.MissingReferencePolicy = "ignore" },
			wantField: "ingestion.missing_reference_policy",
		},
		{
			name:      "redis dedup without host",
			mutate:    func(cfg *Config) { cfg.Deduplication.Mode = constants.DedupModeRedis },
			wantField: "deduplication.redis.host",
		},
		{
			name: "redis dedup with bad on_redis_error",
			mutate: func(cfg *Config) {
				cfg.Deduplication = DeduplicationConfig{
					Mode:         constants.DedupModeRedis,
					TTL:          time.Hour,
					OnRedisError: "reject",
					Redis:        RedisConfig{Host: "redis", Port: 6379},
				}
			},
			wantField: "deduplication.on_redis_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), "'"+tt.wantField+"'")
			}
		})
	}
}
