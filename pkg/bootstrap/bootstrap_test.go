package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Broker: config.BrokerConfig{
			Type:    "kafka",
			Kafka:   config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: constants.DefaultTopic, GroupID: constants.DefaultGroupID},
			Connect: config.ConnectConfig{MaxAttempts: 1},
		},
		Store: config.StoreConfig{
			Driver:         constants.DriverSQLite,
			Path:           filepath.Join(t.TempDir(), "base_de_donnees.db"),
			Table:          constants.DefaultStoreTable,
			ResetOnStartup: true,
		},
	}
}

func TestBase_RegistersRequiredMetrics(t *testing.T) {
	b := NewBase(testConfig(t), logger.NopLogger())
	b.Metrics.IncProcessed()
	b.Metrics.IncErrors()
	b.Metrics.ObserveProcessingDuration(0)

	families, err := b.Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["processed_messages_total"])
	assert.True(t, names["processing_errors_total"])
	assert.True(t, names["message_processing_duration_seconds"])
	assert.True(t, names["go_goroutines"])
}

func TestBase_InitBroker(t *testing.T) {
	cfg := testConfig(t)
	b := NewBase(cfg, logger.NopLogger())
	require.NoError(t, b.InitBroker())
	assert.NotNil(t, b.Connector)

	cfg.Broker.Type = "rabbitmq"
	assert.Error(t, NewBase(cfg, logger.NopLogger()).InitBroker())
}

func TestDatabaseConnector_InitStoreResets(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("stale"), 0o644))

	dc := NewDatabaseConnector(cfg, logger.NopLogger(), nil)
	writer, err := dc.InitStore(context.Background())
	require.NoError(t, err)

	n, err := writer.Count(context.Background(), cfg.Store.Table)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDatabaseConnector_InitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Deduplication.Redis = config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}

	dc := NewDatabaseConnector(cfg, logger.NopLogger(), nil)
	rdb, err := dc.InitRedis(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dc.ShutdownDatabases(context.Background(), rdb))

	mr.Close()
	_, err = dc.InitRedis(context.Background())
	assert.Error(t, err)
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}
