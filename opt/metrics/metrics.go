// Package metrics provides Prometheus instrumentation for the coordinator.
//
// Metrics exposed:
//   - dopt_observations: Gauge of observations in the store
//   - dopt_pending_candidates: Gauge of dispatched, unresolved candidates
//   - dopt_messages_total: Counter of incoming lines by kind (ack, remove, observation)
//   - dopt_contention_failures_total: Counter of observations discarded for contention
//   - dopt_candidates_dispatched_total: Counter of candidates sent to trainers
//   - dopt_batch_seconds: Histogram of time spent applying one received batch
//   - dopt_errors_total: Counter of loop-aborting errors by reason
//
// All metrics carry the run label so several coordinators can share a registry.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	Observations       prometheus.Gauge
	Pending            prometheus.Gauge
	MessagesTotal      *prometheus.CounterVec
	ContentionFailures prometheus.Counter
	DispatchedTotal    prometheus.Counter
	BatchSeconds       prometheus.Histogram
	ErrorsTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, run string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run": run}
	return &Metrics{
		Observations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dopt_observations",
			Help:        "Number of observations in the store",
			ConstLabels: labels,
		}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "dopt_pending_candidates",
			Help:        "Number of dispatched candidates awaiting a result",
			ConstLabels: labels,
		}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "dopt_messages_total",
			Help:        "Incoming message lines by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		ContentionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name:        "dopt_contention_failures_total",
			Help:        "Observations discarded because the trainer reported contention",
			ConstLabels: labels,
		}),
		DispatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "dopt_candidates_dispatched_total",
			Help:        "Candidates sent to trainers",
			ConstLabels: labels,
		}),
		BatchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "dopt_batch_seconds",
			Help:        "Time spent applying one received batch",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "dopt_errors_total",
			Help:        "Errors that aborted the coordination loop, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
	}
}

// RecordMessage counts one incoming line of the given kind.
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(kind).Inc()
}

// RecordContentionFailure counts one discarded observation.
func (m *Metrics) RecordContentionFailure() {
	if m == nil {
		return
	}
	m.ContentionFailures.Inc()
}

// RecordDispatch counts one candidate sent.
func (m *Metrics) RecordDispatch() {
	if m == nil {
		return
	}
	m.DispatchedTotal.Inc()
}

// RecordBatch records the time spent applying one batch.
func (m *Metrics) RecordBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchSeconds.Observe(seconds)
}

// SetSizes updates the observation and pending gauges.
func (m *Metrics) SetSizes(observations, pending int) {
	if m == nil {
		return
	}
	m.Observations.Set(float64(observations))
	m.Pending.Set(float64(pending))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(reason string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(reason).Inc()
}
