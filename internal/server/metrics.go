package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the service counters. Each server registers them on its own
// registry so several servers can live in one process.
type metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	sessionsActive  prometheus.Gauge
	exports         *prometheus.CounterVec // by format
	imports         *prometheus.CounterVec // by importer and outcome
	previews        *prometheus.CounterVec // by outcome
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apidesigner",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Designer sessions created",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "apidesigner",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Designer sessions currently held in memory",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apidesigner",
			Name:      "exports_total",
			Help:      "Documents exported, by format",
		}, []string{"format"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apidesigner",
			Name:      "imports_total",
			Help:      "Documents imported, by importer and outcome",
		}, []string{"importer", "outcome"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apidesigner",
			Name:      "preview_edits_total",
			Help:      "Spec preview edits, by outcome",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsCreated,
		m.sessionsActive,
		m.exports,
		m.imports,
		m.previews,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
