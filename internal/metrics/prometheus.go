// Package metrics provides Prometheus metrics for gdxgrab runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics holds the collectors for one invocation. Each run owns its registry
// so a cron job can dump it to a node-exporter textfile on exit.
type RunMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesFetched    *prometheus.CounterVec
	filesWritten    *prometheus.CounterVec
	archivesSkipped prometheus.Counter
	errorsTotal     *prometheus.CounterVec
	manifestEntries prometheus.Gauge
	lastRun         *prometheus.GaugeVec
}

// New creates and registers the run collectors
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdxgrab_http_requests_total",
				Help: "Total number of HTTP requests made to the archive host",
			},
			[]string{"kind", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gdxgrab_http_request_duration_seconds",
				Help:    "Duration of HTTP requests to the archive host",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		bytesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdxgrab_bytes_fetched_total",
				Help: "Total bytes fetched from the archive host",
			},
			[]string{"kind"},
		),
		filesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdxgrab_files_written_total",
				Help: "Total files written to disk",
			},
			[]string{"source"},
		),
		archivesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gdxgrab_archives_skipped_total",
				Help: "Yearly archives reused from disk instead of downloaded",
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gdxgrab_errors_total",
				Help: "Total number of failed units of work",
			},
			[]string{"type"},
		),
		manifestEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gdxgrab_manifest_entries",
				Help: "Number of file names in the last written manifest",
			},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gdxgrab_last_run_timestamp_seconds",
				Help: "Unix time the last run of each mode finished",
			},
			[]string{"mode", "status"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.bytesFetched,
		m.filesWritten,
		m.archivesSkipped,
		m.errorsTotal,
		m.manifestEntries,
		m.lastRun,
	)
	return m
}

// Registry exposes the run registry as a Gatherer.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records an HTTP request
func (m *RunMetrics) RecordRequest(kind, status string, bytes int64, duration time.Duration) {
	m.requestsTotal.WithLabelValues(kind, status).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if bytes > 0 {
		m.bytesFetched.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordFileWritten records a file written by download or extraction
func (m *RunMetrics) RecordFileWritten(source string) {
	m.filesWritten.WithLabelValues(source).Inc()
}

func (m *RunMetrics) RecordArchiveSkipped() {
	m.archivesSkipped.Inc()
}

// RecordError records an error
func (m *RunMetrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}

func (m *RunMetrics) RecordManifest(entries int) {
	m.manifestEntries.Set(float64(entries))
}

// RecordRunEnd stamps the completion time of a mode.
func (m *RunMetrics) RecordRunEnd(mode string, ok bool, at time.Time) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.lastRun.WithLabelValues(mode, status).Set(float64(at.Unix()))
}

// WriteTextfile dumps the registry in the text exposition format.
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
