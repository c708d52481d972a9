package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/ingestion"
	"surveyflow/internal/logger"
	"surveyflow/pkg/health"
	"surveyflow/pkg/models"
)

func appConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	refPath := filepath.Join(dir, "all_data_joined.csv")
	require.NoError(t, os.WriteFile(refPath, []byte("aggregate_income_Id,income\n7,42000\n"), 0o644))

	return &config.Config{
		Server: config.ServerConfig{Port: 0, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Broker: config.BrokerConfig{
			Type: "kafka",
			Kafka: config.KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				GroupID:        constants.DefaultGroupID,
				Topic:          constants.DefaultTopic,
				CommitInterval: time.Second,
			},
			Connect:   config.ConnectConfig{MaxAttempts: 1, RetryDelay: time.Millisecond},
			Reconnect: config.ReconnectConfig{Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
		},
		Reference: config.ReferenceConfig{
			Path:      refPath,
			Delimiter: ",",
			Cache:     config.ReferenceCacheConfig{Enabled: true, TTL: time.Minute},
		},
		Store: config.StoreConfig{
			Driver:         constants.DriverSQLite,
			Path:           filepath.Join(dir, "base_de_donnees.db"),
			Table:          constants.DefaultStoreTable,
			ResetOnStartup: true,
		},
		Ingestion:      config.IngestionConfig{MissingReferencePolicy: constants.MissingReferenceSkip},
		Deduplication:  config.DeduplicationConfig{Mode: constants.DedupModeNone},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}
}

func TestApp_InitializeServesHealthAndMetrics(t *testing.T) {
	app := NewApp(appConfig(t), logger.NopLogger())
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	assert.Equal(t, ingestion.StateConnecting, app.loop.State())

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var h health.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, health.StatusHealthy, h.Status)

	app.Metrics.IncProcessed()
	rec = httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "processed_messages_total 1")
	assert.Contains(t, rec.Body.String(), "processing_errors_total 0")
	assert.Contains(t, rec.Body.String(), "message_processing_duration_seconds_bucket")
}

func TestApp_MissingReferenceIsDegraded(t *testing.T) {
	cfg := appConfig(t)
	require.NoError(t, os.Remove(cfg.Reference.Path))

	app := NewApp(cfg, logger.NopLogger())
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var h health.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, health.StatusDegraded, h.Status)
}

func TestApp_RedisUnavailableFailsInitialize(t *testing.T) {
	cfg := appConfig(t)
	cfg.Deduplication = config.DeduplicationConfig{
		Mode:  constants.DedupModeRedis,
		Redis: config.RedisConfig{Host: "127.0.0.1", Port: 1},
	}

	app := NewApp(cfg, logger.NopLogger())
	assert.Error(t, app.Initialize(context.Background()))
}

func TestApp_ResetOnStartupForgetsClaims(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := appConfig(t)
	cfg.Deduplication = config.DeduplicationConfig{
		Mode:         constants.DedupModeRedis,
		TTL:          time.Hour,
		OnRedisError: constants.DedupOnErrorFail,
		Redis:        config.RedisConfig{Host: mr.Host(), Port: port},
	}
	msg := models.RawMessage{
		Topic:  constants.DefaultTopic,
		Offset: 5,
		Fields: map[string]interface{}{"Id": json.Number("7")},
	}
	ctx := context.Background()

	first := NewApp(cfg, logger.NopLogger())
	require.NoError(t, first.Initialize(ctx))
	assert.Equal(t, ingestion.OutcomePersisted, first.loop.ProcessMessage(ctx, msg))
	assert.Equal(t, ingestion.OutcomeDuplicate, first.loop.ProcessMessage(ctx, msg))
	require.NoError(t, first.Shutdown(ctx))

	second := NewApp(cfg, logger.NopLogger())
	require.NoError(t, second.Initialize(ctx))
	t.Cleanup(func() { second.Shutdown(context.Background()) })

	assert.Equal(t, ingestion.OutcomePersisted, second.loop.ProcessMessage(ctx, msg))
	n, err := second.writer.Count(ctx, constants.DefaultStoreTable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
