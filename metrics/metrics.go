// Package metrics records counters for a CI run on a private Prometheus
// registry, written out as a node-exporter textfile when configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "qualitygate"

// Report sources for PreviousReports.
const (
	SourceArtifact = "artifact"
	SourceCollect  = "collect"
	SourceNone     = "none"
)

// Metrics holds the run's collectors.
type Metrics struct {
	registry *prometheus.Registry

	Projects        prometheus.Counter
	Commands        *prometheus.HistogramVec
	CommandFailures *prometheus.CounterVec
	PreviousReports *prometheus.CounterVec
	NewIssues       *prometheus.CounterVec
	Comments        prometheus.Counter
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Projects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_processed_total",
			Help:      "Projects whose reports were collected.",
		}),
		Commands: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of code-quality CLI commands.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"command"}),
		CommandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_failures_total",
			Help:      "Code-quality CLI commands that exited non-zero.",
		}, []string{"command"}),
		PreviousReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "previous_reports_total",
			Help:      "Where base branch reports came from.",
		}, []string{"source"}),
		NewIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_issues_total",
			Help:      "Issues introduced by the change, annotated on the diff.",
		}, []string{"project", "severity"}),
		Comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_upserted_total",
			Help:      "Pull request comments created or updated.",
		}),
	}
	m.registry.MustRegister(
		m.Projects,
		m.Commands,
		m.CommandFailures,
		m.PreviousReports,
		m.NewIssues,
		m.Comments,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand records a finished CLI command.
func (m *Metrics) ObserveCommand(command string, d time.Duration, exitCode int) {
	m.Commands.WithLabelValues(command).Observe(d.Seconds())
	if exitCode != 0 {
		m.CommandFailures.WithLabelValues(command).Inc()
	}
}

// WriteToTextfile writes all metrics in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
