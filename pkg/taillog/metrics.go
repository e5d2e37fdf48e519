package taillog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var opDurationBuckets = prometheus.ExponentialBuckets(0.000001, 2, 16) // ~1us to 32ms

// Metrics exports operation counters and latencies to a Prometheus
// registerer. A nil *Metrics disables collection; all observe methods are
// nil-safe.
type Metrics struct {
	appends          prometheus.Counter
	updates          prometheus.Counter
	deletes          prometheus.Counter
	capacityFailures prometheus.Counter
	appendDuration   prometheus.Histogram
	updateDuration   prometheus.Histogram
	searchDuration   prometheus.Histogram
}

// NewMetrics creates and registers the store metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taillog_appends_total",
			Help: "Count of successful appends",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taillog_updates_total",
			Help: "Count of successful updates",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taillog_deletes_total",
			Help: "Count of successful deletes",
		}),
		capacityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taillog_capacity_failures_total",
			Help: "Count of reservations rejected for exceeding key or byte capacity",
		}),
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taillog_append_duration_seconds",
			Help:    "Append latency",
			Buckets: opDurationBuckets,
		}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taillog_update_duration_seconds",
			Help:    "Update latency",
			Buckets: opDurationBuckets,
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taillog_search_duration_seconds",
			Help:    "Search latency",
			Buckets: opDurationBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.appends, m.updates, m.deletes, m.capacityFailures,
		m.appendDuration, m.updateDuration, m.searchDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveAppend records a successful append and its latency.
func (m *Metrics) ObserveAppend(d time.Duration) {
	if m == nil {
		return
	}
	m.appends.Inc()
	m.appendDuration.Observe(d.Seconds())
}

// ObserveUpdate records a successful update and its latency.
func (m *Metrics) ObserveUpdate(d time.Duration) {
	if m == nil {
		return
	}
	m.updates.Inc()
	m.updateDuration.Observe(d.Seconds())
}

// ObserveSearch records a search latency.
func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
}

// IncDelete records a successful delete.
func (m *Metrics) IncDelete() {
	if m == nil {
		return
	}
	m.deletes.Inc()
}

// IncCapacityFailure records a rejected reservation.
func (m *Metrics) IncCapacityFailure() {
	if m == nil {
		return
	}
	m.capacityFailures.Inc()
}
