// Package metrics provides Prometheus collectors for smart-connector client activity.
//
// All recording methods are safe to call on a nil *Metrics, so the client can
// run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tke"

// Metrics holds the client collectors.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	PollResults     *prometheus.CounterVec
	Dispatches      *prometheus.CounterVec
	LeaseRenewals   *prometheus.CounterVec
	ActivePollers   prometheus.Gauge
}

// New creates the client collectors without registering them.
func New() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Requests sent to the smart connector by operation and status code (0 = transport error)",
			},
			[]string{"op", "code"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests to the smart connector",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"op"},
		),

		PollResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "longpoll",
				Name:      "results_total",
				Help:      "Long-poll iterations by resulting state (retry, dispatch, fatal)",
			},
			[]string{"state"},
		),

		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "longpoll",
				Name:      "dispatches_total",
				Help:      "Handle requests dispatched to handlers by outcome (ok, empty, unknown)",
			},
			[]string{"outcome"},
		),

		LeaseRenewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lease",
				Name:      "renewals_total",
				Help:      "Lease renewals by result",
			},
			[]string{"result"},
		),

		ActivePollers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "longpoll",
				Name:      "active",
				Help:      "Number of running long-poll loops",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Requests,
		m.RequestDuration,
		m.PollResults,
		m.Dispatches,
		m.LeaseRenewals,
		m.ActivePollers,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records a finished request. code 0 means no response.
func (m *Metrics) ObserveRequest(op string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// PollResult records the state a long-poll iteration ended in.
func (m *Metrics) PollResult(state string) {
	if m == nil {
		return
	}
	m.PollResults.WithLabelValues(state).Inc()
}

// Dispatch records a dispatched handle request.
func (m *Metrics) Dispatch(outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(outcome).Inc()
}

// LeaseRenewal records a lease renewal attempt.
func (m *Metrics) LeaseRenewal(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.LeaseRenewals.WithLabelValues(result).Inc()
}

// PollerStarted increments the active poller gauge.
func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.ActivePollers.Inc()
}

// PollerStopped decrements the active poller gauge.
func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.ActivePollers.Dec()
}

// Registry is a Prometheus registry holding the client collectors and the Go
// runtime collectors.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with the client and runtime collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := New()
	// collectors are new and uniquely named, registration cannot fail
	_ = m.Register(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{prometheusRegistry: reg, Metrics: m}
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
