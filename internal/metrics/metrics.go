package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the scraper's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry       *prometheus.Registry
	RegionsTotal   *prometheus.CounterVec
	PagesTotal     *prometheus.CounterVec
	RecordsTotal   *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	ErrorsTotal    *prometheus.CounterVec
	RegionsRunning prometheus.Gauge
}

// New registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	regions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preciosjustos_regions_total",
			Help: "Region jobs finished, by outcome.",
		},
		[]string{"status"},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preciosjustos_pages_scraped_total",
			Help: "Result pages scraped, by region.",
		},
		[]string{"region"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preciosjustos_records_scraped_total",
			Help: "Product rows extracted, by region.",
		},
		[]string{"region"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preciosjustos_job_duration_seconds",
			Help:    "Wall time of a region job, including output.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preciosjustos_errors_total",
			Help: "Region failures by error type.",
		},
		[]string{"error_type"},
	)
	running := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "preciosjustos_regions_running",
			Help: "Region jobs currently holding a worker.",
		},
	)

	registry.MustRegister(regions, pages, records, duration, errorsTotal, running)

	return &Metrics{
		Registry:       registry,
		RegionsTotal:   regions,
		PagesTotal:     pages,
		RecordsTotal:   records,
		JobDuration:    duration,
		ErrorsTotal:    errorsTotal,
		RegionsRunning: running,
	}
}

func (m *Metrics) ObservePage(region string, rows int) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(region).Inc()
	m.RecordsTotal.WithLabelValues(region).Add(float64(rows))
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.RegionsRunning.Inc()
}

func (m *Metrics) JobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegionsRunning.Dec()
	m.RegionsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
