package ui

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// Metrics holds the dashboard's Prometheus metrics.
type Metrics struct {
	HarvestRuns     *prometheus.CounterVec
	HarvestDuration prometheus.Histogram
	LineageEdges    prometheus.Gauge
	Datasources     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on registry. The notifier,
// when given, backs a gauge of open SSE streams.
func NewMetrics(registry *prometheus.Registry, notify *notifier.Notifier) *Metrics {
	m := &Metrics{
		HarvestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaplineage_harvest_runs_total",
				Help: "Total number of harvest runs",
			},
			[]string{"status"},
		),
		HarvestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leaplineage_harvest_duration_seconds",
				Help:    "Harvest duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		LineageEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaplineage_lineage_edges",
			Help: "Lineage edges in the latest harvest",
		}),
		Datasources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaplineage_datasources",
			Help: "Datasources in the latest harvest",
		}),
		registry: registry,
	}

	registry.MustRegister(m.HarvestRuns, m.HarvestDuration, m.LineageEdges, m.Datasources)
	if notify != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "leaplineage_ui_sse_clients",
				Help: "Open server-sent event streams",
			},
			func() float64 { return float64(notify.Subscribers()) },
		))
	}
	return m
}

// ObserveRun records a finished harvest.
func (m *Metrics) ObserveRun(status state.RunStatus, elapsed time.Duration, res *harvest.Result) {
	m.HarvestRuns.WithLabelValues(string(status)).Inc()
	m.HarvestDuration.Observe(elapsed.Seconds())
	if res != nil {
		m.LineageEdges.Set(float64(len(res.Lineage)))
		m.Datasources.Set(float64(len(res.Datasources)))
	}
}

// SetSnapshot seeds the gauges from an existing snapshot at startup.
func (m *Metrics) SetSnapshot(snap *common.Snapshot) {
	m.LineageEdges.Set(float64(len(snap.Lineage)))
	m.Datasources.Set(float64(len(snap.Datasources)))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
