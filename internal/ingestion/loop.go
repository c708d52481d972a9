package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"surveyflow/internal/broker"
	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/deduplication"
	"surveyflow/internal/enrichment"
	"surveyflow/internal/logger"
	"surveyflow/internal/reference"
	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/metrics"
	"surveyflow/pkg/models"
	"surveyflow/pkg/retry"
)

type Enricher interface {
	Enrich(raw models.RawMessage, table *reference.Table) ([]enrichment.EnrichedRecord, error)
}

type RecordWriter interface {
	Append(ctx context.Context, table string, records []enrichment.EnrichedRecord) (int64, error)
}

type Dependencies struct {
	Connector broker.Connector
	Loader    reference.Loader
	Enricher  Enricher
	Writer    RecordWriter
	Guard     deduplication.Guard
}

type Config struct {
	Table                  string
	ReferencePath          string
	MissingReferencePolicy string
	ReconnectBackoff       time.Duration
	MaxReconnectBackoff    time.Duration
	ErrorLogInterval       time.Duration
	ErrorLogBurst          int
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Table:                  cfg.Store.Table,
		ReferencePath:          cfg.Reference.Path,
		MissingReferencePolicy: cfg.Ingestion.MissingReferencePolicy,
		ReconnectBackoff:       cfg.Broker.Reconnect.Backoff,
		MaxReconnectBackoff:    cfg.Broker.Reconnect.MaxBackoff,
		ErrorLogInterval:       cfg.Ingestion.ErrorLogInterval,
		ErrorLogBurst:          cfg.Ingestion.ErrorLogBurst,
	}
}

// Loop consumes deliveries one at a time: a message is fully processed
// before the next one is read.
type Loop struct {
	deps     Dependencies
	cfg      Config
	metrics  *metrics.Metrics
	logger   logger.Logger
	state    atomic.Int32
	errorLog rate.Sometimes
}

func NewLoop(deps Dependencies, cfg Config, m *metrics.Metrics, log logger.Logger) *Loop {
	if deps.Guard == nil {
		deps.Guard = deduplication.NoopGuard{}
	}
	if deps.Enricher == nil {
		deps.Enricher = enrichment.NewEnricher()
	}
	if cfg.Table == "" {
		cfg.Table = constants.DefaultStoreTable
	}
	if cfg.MissingReferencePolicy == "" {
		cfg.MissingReferencePolicy = constants.MissingReferenceSkip
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = constants.DefaultReconnectBackoff
	}
	if cfg.MaxReconnectBackoff < cfg.ReconnectBackoff {
		cfg.MaxReconnectBackoff = cfg.ReconnectBackoff
	}
	if cfg.ErrorLogInterval <= 0 {
		cfg.ErrorLogInterval = constants.DefaultErrorLogInterval
	}
	if cfg.ErrorLogBurst <= 0 {
		cfg.ErrorLogBurst = constants.DefaultErrorLogBurst
	}

	l := &Loop{
		deps:    deps,
		cfg:     cfg,
		metrics: m,
		logger:  log,
		errorLog: rate.Sometimes{
			First:    cfg.ErrorLogBurst,
			Interval: cfg.ErrorLogInterval,
		},
	}
	l.setState(StateConnecting)
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run connects and consumes until ctx is cancelled. Only a failed initial
// connection is returned; later broker errors lead to a reconnect.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateConnecting)
	conn, err := l.deps.Connector.Connect(ctx)
	if err != nil {
		l.setState(StateStopped)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("initial broker connection failed: %w", err)
	}
	defer func() {
		if conn != nil {
			conn.Close()
		}
		l.setState(StateStopped)
	}()

	l.setState(StateConsuming)
	l.logger.InfowCtx(ctx, "Consuming messages", "table", l.cfg.Table, "reference", l.cfg.ReferencePath)

	for {
		raw, err := conn.NextMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, broker.ErrMalformedMessage) {
				l.rejectMalformed(ctx, raw, err)
				continue
			}

			l.logger.ErrorwCtx(ctx, "Broker connection lost", "error", err)
			if cerr := conn.Close(); cerr != nil {
				l.logger.WarnwCtx(ctx, "Failed to close broker connection", "error", cerr)
			}
			conn = l.reconnect(ctx)
			if conn == nil {
				return nil
			}
			continue
		}

		l.ProcessMessage(ctx, raw)
	}
}

// reconnect blocks until a new connection exists or ctx is cancelled, in
// which case it returns nil.
func (l *Loop) reconnect(ctx context.Context) broker.Connection {
	backOff := retry.ExponentialPolicy(l.cfg.ReconnectBackoff, l.cfg.MaxReconnectBackoff).NewBackOff()
	for failures := 0; ; failures++ {
		l.setState(StateReconnecting)
		delay := backOff.NextBackOff()
		l.logger.InfowCtx(ctx, "Waiting before reconnecting to broker", "delay", delay, "failures", failures)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		l.setState(StateConnecting)
		l.metrics.IncReconnects()
		conn, err := l.deps.Connector.Connect(ctx)
		if err == nil {
			l.setState(StateConsuming)
			l.logger.InfowCtx(ctx, "Reconnected to broker")
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		l.logger.ErrorwCtx(ctx, "Reconnect failed", "error", err)
	}
}

func (l *Loop) rejectMalformed(ctx context.Context, raw models.RawMessage, err error) {
	l.setState(StateMessageFailed)
	l.metrics.IncErrors()
	l.logError(ctx, "Rejected malformed message",
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
		"error_code", apperrors.Classify(err).Code,
		"error", err,
	)
	l.setState(StateConsuming)
}

func (l *Loop) logError(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.errorLog.Do(func() {
		l.logger.ErrorwCtx(ctx, msg, keysAndValues...)
	})
}
