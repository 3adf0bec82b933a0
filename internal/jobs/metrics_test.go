package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("catalog:low_stock_scan").End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("catalog:low_stock_scan").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("catalog:low_stock_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("catalog:low_stock_scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("catalog:low_stock_scan")))
}

func TestGaugesAndCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetLowStock(4)
	m.AddPurgedKeys(7)
	m.AddPurgedKeys(0)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.lowStock))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.purged))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetLowStock(1)
	m.AddPurgedKeys(1)
	err := errors.New("x")
	assert.Equal(t, err, m.Track("job").End(err))
}
