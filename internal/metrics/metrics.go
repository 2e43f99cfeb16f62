package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/devblac/dex-catalog/internal/report"
)

// Metrics holds Prometheus collectors for catalog runs.
type Metrics struct {
	gatherer prometheus.Gatherer

	runs            *prometheus.CounterVec
	adapterRuns     *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	records         *prometheus.GaugeVec
	conflicts       prometheus.Gauge
	files           *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes metrics on the default registry (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = register(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return metrics
}

// NewWithRegistry registers a fresh set of collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	return register(reg, reg)
}

func register(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_catalog_runs_total",
			Help: "Catalog runs by final status",
		}, []string{"status"}),
		adapterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_catalog_adapter_runs_total",
			Help: "Adapter fetches by adapter and outcome",
		}, []string{"adapter", "status"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_catalog_adapter_duration_seconds",
			Help:    "Adapter fetch latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"adapter"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_catalog_records",
			Help: "Records seen by the last run per pipeline stage",
		}, []string{"stage"}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dex_catalog_conflicts",
			Help: "Merge keys left unpublished by the last run",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_catalog_files_total",
			Help: "Artifact file outcomes",
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dex_catalog_last_run_timestamp_seconds",
			Help: "Finish time of the last run",
		}),
	}
	reg.MustRegister(
		m.runs,
		m.adapterRuns,
		m.adapterDuration,
		m.records,
		m.conflicts,
		m.files,
		m.lastRun,
	)
	return m
}

// Observe records a finished run.
func (m *Metrics) Observe(r *report.Report) {
	if m == nil || r == nil {
		return
	}
	m.runs.WithLabelValues(r.Status()).Inc()
	for _, a := range r.Adapters {
		m.adapterRuns.WithLabelValues(a.ID, a.Status).Inc()
		m.adapterDuration.WithLabelValues(a.ID).Observe(float64(a.DurationMS) / 1000)
	}
	m.records.WithLabelValues("fetched").Set(float64(r.Records.Fetched))
	m.records.WithLabelValues("normalized").Set(float64(r.Records.Normalized))
	m.records.WithLabelValues("dropped").Set(float64(r.Records.Dropped))
	m.conflicts.Set(float64(len(r.Conflicts)))
	m.files.WithLabelValues("written").Add(float64(r.Files.Written))
	m.files.WithLabelValues("unchanged").Add(float64(r.Files.Unchanged))
	m.files.WithLabelValues("removed").Add(float64(r.Files.Removed))
	m.files.WithLabelValues("kept").Add(float64(r.Files.Kept))
	m.files.WithLabelValues("failed").Add(float64(r.Files.Failed))
	if !r.FinishedAt.IsZero() {
		m.lastRun.Set(float64(r.FinishedAt.Unix()))
	}
}

// Push sends the current values to a Pushgateway. One-shot CLI runs use
// this since nothing scrapes them.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil {
		return nil
	}
	if job == "" {
		job = "dex_catalog"
	}
	if err := push.New(url, job).Gatherer(m.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Handler returns an HTTP handler for /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
