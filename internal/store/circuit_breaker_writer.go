package store

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"surveyflow/internal/config"
	"surveyflow/internal/enrichment"
	"surveyflow/internal/logger"
	"surveyflow/pkg/circuitbreaker"
	"surveyflow/pkg/metrics"
)

// CircuitBreakerWriter fails Append fast while the store keeps failing.
// An open breaker surfaces as a StoreError like any other write failure.
type CircuitBreakerWriter struct {
	Writer
	cb     *circuitbreaker.Wrapper
	logger logger.Logger
}

func NewCircuitBreakerWriter(next Writer, cfg config.CircuitBreakerConfig, log logger.Logger, m *metrics.Metrics) *CircuitBreakerWriter {
	cbCfg := circuitbreaker.DefaultConfig("store")
	if cfg.MaxRequests > 0 {
		cbCfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbCfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbCfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbCfg.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbCfg.MinRequests = cfg.MinRequests
	}
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrSchemaMismatch)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warnw("Circuit breaker state changed",
			"name", name,
			"from", from.String(),
			"to", to.String(),
		)
	}

	return &CircuitBreakerWriter{
		Writer: next,
		cb:     circuitbreaker.NewWrapper(cbCfg, m),
		logger: log,
	}
}

func (w *CircuitBreakerWriter) Append(ctx context.Context, table string, records []enrichment.EnrichedRecord) (int64, error) {
	result, err := w.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return w.Writer.Append(ctx, table, records)
	})
	if err != nil {
		return 0, wrapErr("append", table, err)
	}
	return result.(int64), nil
}

func (w *CircuitBreakerWriter) State() gobreaker.State {
	return w.cb.State()
}
