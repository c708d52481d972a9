package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the ingestion service reports to.
// It is built once at startup and passed to the components that need it.
// Helper methods are no-ops on a nil receiver.
type Metrics struct {
	ProcessedMessages  prometheus.Counter
	ProcessingErrors   prometheus.Counter
	ProcessingDuration prometheus.Histogram

	MessagesSkipped   *prometheus.CounterVec
	BrokerReconnects  prometheus.Counter
	ConnectAttempts   prometheus.Counter
	KafkaMessagesRead *prometheus.CounterVec
	KafkaMessageSize  *prometheus.HistogramVec

	StoreRows          prometheus.Gauge
	StoreQueries       *prometheus.CounterVec
	StoreQueryDuration *prometheus.HistogramVec

	ReferenceLoads *prometheus.CounterVec

	DedupClaims *prometheus.CounterVec

	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
	CircuitBreakerFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProcessedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processed_messages_total",
			Help: "Total number of messages that went through the full processing pipeline (count)",
		}),
		ProcessingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processing_errors_total",
			Help: "Total number of messages whose processing failed (count)",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Duration of one per-message pipeline execution in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		MessagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_messages_skipped_total",
			Help: "Total number of messages not appended, by reason. Duplicates are also counted as processed (count)",
		}, []string{"reason"}),
		BrokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_broker_reconnects_total",
			Help: "Total number of reconnections after a mid-stream broker failure (count)",
		}),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_connect_attempts_total",
			Help: "Total number of broker connection attempts (count)",
		}),
		KafkaMessagesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		}, []string{"topic"}),
		KafkaMessageSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestion_kafka_message_size_bytes",
			Help:    "Size of Kafka message payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"topic"}),

		StoreRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingestion_store_rows",
			Help: "Row count of the output table after the last append (count)",
		}),
		StoreQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_store_queries_total",
			Help: "Total number of store operations (count)",
		}, []string{"driver", "operation", "status"}),
		StoreQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestion_store_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"driver", "operation"}),

		ReferenceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_reference_loads_total",
			Help: "Total number of reference dataset lookups by result (count)",
		}, []string{"result"}),

		DedupClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_dedup_claims_total",
			Help: "Total number of idempotency claims by result (count)",
		}, []string{"result"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		}, []string{"name"}),
		CircuitBreakerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		}, []string{"name", "state"}),
		CircuitBreakerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		}, []string{"name"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ProcessedMessages,
			m.ProcessingErrors,
			m.ProcessingDuration,
			m.MessagesSkipped,
			m.BrokerReconnects,
			m.ConnectAttempts,
			m.KafkaMessagesRead,
			m.KafkaMessageSize,
			m.StoreRows,
			m.StoreQueries,
			m.StoreQueryDuration,
			m.ReferenceLoads,
			m.DedupClaims,
			m.CircuitBreakerState,
			m.CircuitBreakerRequests,
			m.CircuitBreakerFailures,
		)
	}

	return m
}

func (m *Metrics) IncProcessed() {
	if m == nil {
		return
	}
	m.ProcessedMessages.Inc()
}

func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.ProcessingErrors.Inc()
}

func (m *Metrics) ObserveProcessingDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.ProcessingDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.MessagesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.BrokerReconnects.Inc()
}

func (m *Metrics) IncConnectAttempts() {
	if m == nil {
		return
	}
	m.ConnectAttempts.Inc()
}

func (m *Metrics) IncKafkaMessagesRead(topic string, sizeBytes int) {
	if m == nil {
		return
	}
	m.KafkaMessagesRead.WithLabelValues(topic).Inc()
	m.KafkaMessageSize.WithLabelValues(topic).Observe(float64(sizeBytes))
}

func (m *Metrics) SetStoreRows(count int64) {
	if m == nil {
		return
	}
	m.StoreRows.Set(float64(count))
}

func (m *Metrics) ObserveStoreQuery(driver, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreQueries.WithLabelValues(driver, operation, status).Inc()
	m.StoreQueryDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

func (m *Metrics) IncReferenceLoad(result string) {
	if m == nil {
		return
	}
	m.ReferenceLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDedupClaim(result string) {
	if m == nil {
		return
	}
	m.DedupClaims.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) IncCircuitBreakerRequest(name, state string, success bool) {
	if m == nil {
		return
	}
	m.CircuitBreakerRequests.WithLabelValues(name, state).Inc()
	if !success {
		m.CircuitBreakerFailures.WithLabelValues(name).Inc()
	}
}
