package transport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// Metrics counts transport activity. A nil *Metrics records nothing.
type Metrics struct {
	connects  prometheus.Counter
	requests  *prometheus.CounterVec
	redirects *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewMetrics creates the transport metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		connects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smarthttp_connects_total",
				Help: "Total number of connections established",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarthttp_requests_total",
				Help: "Total number of requests sent",
			},
			[]string{"service", "method"},
		),
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarthttp_redirects_total",
				Help: "Total number of redirects followed",
			},
			[]string{"service"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarthttp_failures_total",
				Help: "Total number of failed operations by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(m.connects, m.requests, m.redirects, m.failures)
	return m
}

func (m *Metrics) recordConnect() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

func (m *Metrics) recordRequest(d Descriptor) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(d.Service.String(), d.Method).Inc()
}

func (m *Metrics) recordRedirect(d Descriptor) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(d.Service.String()).Inc()
}

func (m *Metrics) recordFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.failures.WithLabelValues(giterr.KindOf(err).String()).Inc()
}
