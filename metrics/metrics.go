// Package metrics counts what an analysis run did and exports the counters
// in the Prometheus text format, for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/report"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const namespace = "deprisk"

// Metrics holds the counters of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Dependencies     prometheus.Counter
	Unmatched        prometheus.Counter
	Matches          *prometheus.CounterVec
	Rows             *prometheus.CounterVec
	ReferenceRecords prometheus.Gauge
	Duration         prometheus.Gauge
	LastRun          prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Dependencies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dependencies_total",
		Help:      "Number of analyzed dependencies",
	})
	m.Unmatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unmatched_dependencies_total",
		Help:      "Number of dependencies without any known CVE",
	})
	m.Matches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Number of matched CVE records by lookup strategy",
	}, []string{"match_type"})
	m.Rows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_rows_total",
		Help:      "Number of report rows by severity",
	}, []string{"severity"})
	m.ReferenceRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reference_records",
		Help:      "Number of records in the reference table",
	})
	m.Duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last analysis run",
	})
	m.LastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last analysis run finished",
	})

	m.registry.MustRegister(m.Dependencies, m.Unmatched, m.Matches, m.Rows,
		m.ReferenceRecords, m.Duration, m.LastRun)

	// every severity is exported, zero or not
	for _, s := range types.ClassLabels {
		m.Rows.WithLabelValues(string(s))
	}
	return m
}

// Observe counts the groups of a finished report.
func (m *Metrics) Observe(groups []report.Group) {
	for _, g := range groups {
		m.Dependencies.Inc()
		for _, r := range g.Results {
			m.Rows.WithLabelValues(string(r.Severity)).Inc()
			if r.IsSentinel() {
				m.Unmatched.Inc()
				continue
			}
			m.Matches.WithLabelValues(r.MatchType).Inc()
		}
	}
}

// Finish records the run duration and completion time.
func (m *Metrics) Finish(start, end time.Time) {
	m.Duration.Set(end.Sub(start).Seconds())
	m.LastRun.Set(float64(end.Unix()))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return xerrors.Errorf("unable to write metrics to %s: %w", path, err)
	}
	return nil
}
