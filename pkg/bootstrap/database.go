package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"surveyflow/internal/config"
	"surveyflow/internal/logger"
	"surveyflow/internal/store"
	"surveyflow/pkg/metrics"
)

type DatabaseConnector struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger, m *metrics.Metrics) *DatabaseConnector {
	return &DatabaseConnector{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
	}
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	redisCfg := dc.Config.Deduplication.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

// InitStore verifies the store is reachable and, when configured, drops the
// previous contents so every run starts from an empty table.
func (dc *DatabaseConnector) InitStore(ctx context.Context) (*store.SQLWriter, error) {
	storeCfg := dc.Config.Store

	writer, err := store.NewSQLWriter(storeCfg, dc.Logger, dc.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create store writer: %w", err)
	}

	if storeCfg.ResetOnStartup {
		if err := writer.Reset(ctx, storeCfg.Table); err != nil {
			return nil, fmt.Errorf("failed to reset store: %w", err)
		}
		dc.Logger.Infow("Store reset", "driver", storeCfg.Driver, "table", storeCfg.Table)
	}

	if err := writer.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	dc.Logger.Infow("Store ready", "driver", storeCfg.Driver, "table", storeCfg.Table)
	return writer, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	return errs
}
