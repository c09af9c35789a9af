// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by using
// client_golang CounterVec and SummaryVec collectors and pushing collected
// metrics to a Pushgateway instance instead of exposing a scrape endpoint;
// pipeline runs are short-lived batch jobs. All Prometheus-specific
// dependencies are contained here so the engine can swap metric systems
// without changes to core code.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/LOLA0786/Devlake/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // devlake_step_total
	stepDuration *prometheus.SummaryVec // devlake_step_duration_seconds
	rowCounter   *prometheus.CounterVec // devlake_rows_total
	runCounter   *prometheus.CounterVec // devlake_runs_total
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping key (typically the pipeline name); gatewayURL is the base URL of
// the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "devlake"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlake_step_total",
			Help: "Total number of pipeline step executions, partitioned by step kind and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "devlake_step_duration_seconds",
			Help:       "Duration of pipeline steps in seconds, partitioned by step kind and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlake_rows_total",
			Help: "Row-level counts per kind (loaded, transformed, saved).",
		},
		[]string{"kind"},
	)
	runCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlake_runs_total",
			Help: "Completed pipeline runs partitioned by final verdict.",
		},
		[]string{"verdict"},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, rowCounter, runCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowCounter:   rowCounter,
		runCounter:   runCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "devlake_step_total":
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "devlake_rows_total":
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "devlake_runs_total":
		b.runCounter.WithLabelValues(labels["verdict"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "devlake_step_duration_seconds" {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes all collected metrics to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
