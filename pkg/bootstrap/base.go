package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"surveyflow/internal/broker"
	"surveyflow/internal/config"
	"surveyflow/internal/logger"
	"surveyflow/pkg/metrics"
)

// Base holds what every long-running command needs: config, logger, the
// metrics registry and the broker connector.
type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Connector broker.Connector
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Base{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
}

func (b *Base) InitBroker() error {
	connector, err := broker.NewKafkaConnector(b.Config.Broker, b.Logger, b.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create broker connector: %w", err)
	}

	b.Connector = connector
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
