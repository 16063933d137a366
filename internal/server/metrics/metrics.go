// Package metrics owns the Prometheus registry for the auth server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	authOutcomes    *prometheus.CounterVec
	cacheFallbacks  *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	panicsTotal     prometheus.Counter
	httpDuration    *prometheus.HistogramVec
	brokerConnected prometheus.Gauge
}

// New builds a fresh registry with the process and Go collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		authOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Register and login attempts by outcome.",
		}, []string{"operation", "outcome"}),
		cacheFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_cache_fallbacks_total",
			Help: "Cache errors tolerated by falling back to the store.",
		}, []string{"operation"}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_published_total",
			Help: "UserRegistered publish attempts by result.",
		}, []string{"result"}),
		panicsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "http_req_panics_recovered_total",
			Help: "Total number of HTTP requests recovered from internal panic.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.3, 0.6, 1, 3, 6},
		}, []string{"method", "route", "status"}),
		brokerConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "auth_broker_connected",
			Help: "1 while the event publisher holds a live broker connection.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) AuthOutcome(operation, outcome string) {
	m.authOutcomes.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) CacheFallback(operation string) {
	m.cacheFallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) EventPublished(result string) {
	m.eventsPublished.WithLabelValues(result).Inc()
}

func (m *Metrics) PanicRecovered() {
	m.panicsTotal.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) SetBrokerConnected(connected bool) {
	if connected {
		m.brokerConnected.Set(1)
		return
	}
	m.brokerConnected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
