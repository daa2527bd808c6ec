package server

import (
	"net/http"
	"time"

	"github.com/desertthunder/itx/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts migration outcomes on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	Migrations *prometheus.CounterVec
	Tracks     *prometheus.CounterVec
	Batches    prometheus.Counter
	Duration   prometheus.Histogram
}

// NewMetrics creates and registers the migration collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Migrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itx_migrations_total",
				Help: "Migration runs by final status",
			},
			[]string{"status"},
		),
		Tracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itx_tracks_total",
				Help: "Library tracks processed by match result",
			},
			[]string{"result"},
		),
		Batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "itx_batches_flushed_total",
				Help: "Add-to-playlist calls that succeeded",
			},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "itx_migration_duration_seconds",
				Help:    "Wall time of migration runs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}

	m.registry.MustRegister(m.Migrations, m.Tracks, m.Batches, m.Duration)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observer returns a callback that counts the entries of one run started at start.
func (m *Metrics) Observer(start time.Time) func(models.LogEntry) {
	return func(e models.LogEntry) {
		switch e.Kind {
		case models.EntryMatched:
			m.Tracks.WithLabelValues("matched").Inc()
		case models.EntryUnmatched:
			m.Tracks.WithLabelValues("unmatched").Inc()
		case models.EntryFlushed:
			m.Batches.Inc()
		case models.EntryCompleted:
			m.Migrations.WithLabelValues(models.MigrationCompleted).Inc()
			m.Duration.Observe(time.Since(start).Seconds())
		case models.EntryFailed:
			m.Migrations.WithLabelValues(models.MigrationFailed).Inc()
			m.Duration.Observe(time.Since(start).Seconds())
		}
	}
}
