package core

import (
	"net/http"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mapsharvest"

// Metrics 运行指标,每个引擎使用独立的注册表
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	emails      prometheus.Counter
	records     prometheus.Gauge
	discovered  prometheus.Gauge
	activeRuns  prometheus.Gauge
	runDuration prometheus.Histogram
}

// NewMetrics 创建并注册运行指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Finished runs by final status.",
		}, []string{"status"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_total",
			Help:      "Processed listing items by final state.",
		}, []string{"state"}),
		emails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "emails_harvested_total",
			Help:      "Email addresses found on business websites.",
		}),
		records: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "records",
			Help:      "Deduplicated records held by the current run.",
		}),
		discovered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "listing_items_discovered",
			Help:      "Listing items found after scroll convergence.",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "runs_active",
			Help:      "1 while a run holds the browser session.",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}),
	}
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) runStarted() {
	m.activeRuns.Set(1)
	m.records.Set(0)
	m.discovered.Set(0)
}

func (m *Metrics) runFinished(status models.RunStatus, seconds float64) {
	m.activeRuns.Set(0)
	m.runs.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) itemFinished(state models.ItemState) {
	m.items.WithLabelValues(string(state)).Inc()
}
