// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (job, kind, status) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, which suits a batch process that
//     exits when the run completes.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog) without changes to the core pipeline.
package prompush

import (
	"fmt"

	"laspipe/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	pointCounter *prometheus.CounterVec // "laspipe_points_total"
	batchCounter prometheus.Counter     // "laspipe_batches_total"
	runCounter   *prometheus.CounterVec // "laspipe_runs_total"
	runDuration  *prometheus.SummaryVec // "laspipe_run_duration_seconds"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "laspipe"
	}

	reg := prometheus.NewRegistry()

	pointCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laspipe_points_total",
			Help: "Point-record counts per kind (read, routed, written).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "laspipe_batches_total",
			Help: "Total number of routed batches flushed for this job.",
		},
	)
	runCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laspipe_runs_total",
			Help: "Total pipeline runs, partitioned by status.",
		},
		[]string{"status"},
	)
	runDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "laspipe_run_duration_seconds",
			Help:       "Duration of pipeline runs in seconds, partitioned by status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"status"},
	)

	if err := reg.Register(pointCounter); err != nil {
		return nil, fmt.Errorf("prompush: register point counter: %w", err)
	}
	if err := reg.Register(batchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register batch counter: %w", err)
	}
	if err := reg.Register(runCounter); err != nil {
		return nil, fmt.Errorf("prompush: register run counter: %w", err)
	}
	if err := reg.Register(runDuration); err != nil {
		return nil, fmt.Errorf("prompush: register run summary: %w", err)
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		pointCounter: pointCounter,
		batchCounter: batchCounter,
		runCounter:   runCounter,
		runDuration:  runDuration,
	}, nil
}

// IncCounter implements metrics.Backend.IncCounter.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "laspipe_points_total":
		b.pointCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "laspipe_batches_total":
		b.batchCounter.Add(delta)
	case "laspipe_runs_total":
		b.runCounter.WithLabelValues(labels["status"]).Add(delta)
	default:
		// Unknown counters are dropped rather than panicking the pipeline.
	}
}

// ObserveHistogram implements metrics.Backend.ObserveHistogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "laspipe_run_duration_seconds":
		b.runDuration.WithLabelValues(labels["status"]).Observe(value)
	}
}

// Flush pushes all collected metrics to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}

// Registry exposes the backend's registry for tests.
func (b *Backend) Registry() *prometheus.Registry { return b.reg }
