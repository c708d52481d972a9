package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersRequiredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncProcessed()
	m.IncErrors()
	m.ObserveProcessingDuration(20 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["processed_messages_total"])
	assert.True(t, names["processing_errors_total"])
	assert.True(t, names["message_processing_duration_seconds"])
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncProcessed()
	m.IncProcessed()
	m.IncErrors()
	m.IncSkipped("reference_missing")
	m.SetStoreRows(12)
	m.ObserveStoreQuery("sqlite", "append", time.Millisecond, errors.New("locked"))
	m.IncCircuitBreakerRequest("store", "closed", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProcessedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProcessingErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSkipped.WithLabelValues("reference_missing")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.StoreRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreQueries.WithLabelValues("sqlite", "append", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerFailures.WithLabelValues("store")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncProcessed()
		m.IncErrors()
		m.ObserveProcessingDuration(time.Second)
		m.IncReferenceLoad("hit")
		m.SetCircuitBreakerState("store", 2)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
