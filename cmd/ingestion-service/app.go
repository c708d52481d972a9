package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/deduplication"
	"surveyflow/internal/enrichment"
	"surveyflow/internal/ingestion"
	"surveyflow/internal/logger"
	"surveyflow/internal/reference"
	"surveyflow/internal/store"
	"surveyflow/pkg/bootstrap"
	"surveyflow/pkg/health"
	"surveyflow/pkg/logging"
	"surveyflow/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	writer         *store.SQLWriter
	loop           *ingestion.Loop
	healthRegistry *health.CheckerRegistry
	tracerProvider *tracing.Provider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	base := bootstrap.NewBase(cfg, log)
	return &App{
		Base:           base,
		dbConnector:    bootstrap.NewDatabaseConnector(cfg, log, base.Metrics),
		healthRegistry: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Setup(ctx, a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	writer, err := a.initStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	guard, err := a.initGuard(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize deduplication: %w", err)
	}
	if a.Config.Store.ResetOnStartup {
		if err := guard.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset deduplication claims: %w", err)
		}
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.loop = ingestion.NewLoop(ingestion.Dependencies{
		Connector: a.Connector,
		Loader:    a.initReference(),
		Enricher:  enrichment.NewEnricher(),
		Writer:    writer,
		Guard:     guard,
	}, ingestion.ConfigFrom(a.Config), a.Metrics, a.Logger)

	a.initHTTPServer()

	return nil
}

func (a *App) initStore(ctx context.Context) (ingestion.RecordWriter, error) {
	writer, err := a.dbConnector.InitStore(ctx)
	if err != nil {
		return nil, err
	}
	a.writer = writer
	a.healthRegistry.Register(health.NewStoreChecker(a.Config.Store.Driver, writer))

	if a.Config.CircuitBreaker.Enabled {
		initCtx := logging.WithServiceName(ctx, constants.ServiceName)
		a.Logger.InfowCtx(initCtx, "Circuit breaker enabled for store writer")
		return store.NewCircuitBreakerWriter(writer, a.Config.CircuitBreaker, a.Logger, a.Metrics), nil
	}
	return writer, nil
}

func (a *App) initReference() reference.Loader {
	refCfg := a.Config.Reference
	a.healthRegistry.RegisterOptional(health.NewFileChecker("reference", refCfg.Path))

	var loader reference.Loader = reference.NewCSVLoader(refCfg.Delimiter, a.Logger, a.Metrics)
	if refCfg.Cache.Enabled {
		loader = reference.NewCachedLoader(loader, refCfg.Cache.TTL, a.Metrics)
	}
	return loader
}

func (a *App) initGuard(ctx context.Context) (deduplication.Guard, error) {
	dedupCfg := a.Config.Deduplication
	if dedupCfg.Mode != constants.DedupModeRedis {
		return deduplication.NoopGuard{}, nil
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return nil, err
	}
	a.redis = rdb
	a.healthRegistry.Register(health.NewRedisChecker(rdb))

	var repo deduplication.Repository = deduplication.NewRepository(rdb)
	if a.Config.CircuitBreaker.Enabled {
		repo = deduplication.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker, a.Metrics)
	}

	return deduplication.NewGuard(dedupCfg, repo, a.Logger, a.Metrics), nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", tracing.HTTPHandler("health", health.Handler(a.healthRegistry)))
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		loopCtx := logging.WithServiceName(gCtx, constants.ServiceName)
		return a.loop.Run(loopCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down ingestion service", "state", a.loopState())

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

func (a *App) loopState() string {
	if a.loop == nil {
		return "not_started"
	}
	return a.loop.State().String()
}
