package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	// GIVEN collectors on a private registry
	reg := prometheus.NewRegistry()
	m := New(reg, "42")

	// WHEN a batch is recorded
	m.RecordMessage("ack")
	m.RecordMessage("observation")
	m.RecordMessage("observation")
	m.RecordContentionFailure()
	m.RecordDispatch()
	m.RecordDispatch()
	m.RecordBatch(0.002)
	m.SetSizes(7, 3)
	m.RecordError("malformed_message")

	// THEN the values are visible with the run label
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("ack")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("observation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContentionFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Observations))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("malformed_message")))

	expected := `
# HELP dopt_observations Number of observations in the store
# TYPE dopt_observations gauge
dopt_observations{run="42"} 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dopt_observations"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchSeconds))
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMessage("ack")
		m.RecordContentionFailure()
		m.RecordDispatch()
		m.RecordBatch(1)
		m.SetSizes(1, 1)
		m.RecordError("internal")
	})
}

func TestMetrics_TwoRunsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "a")
	b := New(reg, "b")
	a.SetSizes(1, 0)
	b.SetSizes(2, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Observations))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.Observations))
}
