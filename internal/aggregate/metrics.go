// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes recorded in the outcome label.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
	outcomePanic   = "panic"
)

// Metrics holds the Prometheus collectors updated by an Orchestrator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          prometheus.Counter
	fetches       *prometheus.CounterVec
	records       *prometheus.CounterVec
	duplicates    prometheus.Counter
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paper_aggregator",
			Name:      "runs_total",
			Help:      "Aggregation runs that dispatched at least one source.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_aggregator",
			Name:      "source_fetches_total",
			Help:      "Source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_aggregator",
			Name:      "records_fetched_total",
			Help:      "Records returned by each source before deduplication.",
		}, []string{"source"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paper_aggregator",
			Name:      "duplicates_removed_total",
			Help:      "Records collapsed into another record by deduplication.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paper_aggregator",
			Name:      "source_fetch_duration_seconds",
			Help:      "Wall-clock duration of each source fetch.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.fetches, m.records, m.duplicates, m.fetchDuration)
	}
	return m
}

func (m *Metrics) observeRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *Metrics) observeFetch(source, outcome string, n int, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
	m.records.WithLabelValues(source).Add(float64(n))
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) observeDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicates.Add(float64(n))
}
