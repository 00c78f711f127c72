// Package metrics holds the Prometheus collectors for dispatch and relay
// traffic. Collectors live on a private registry so tests and embedded
// servers never collide on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcprelay"

// Dispatch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid_params"
	OutcomeUpstream = "upstream_error"
	OutcomeError    = "error"
)

// UnknownMethod labels calls whose method is not registered. Only registered
// names are used as label values, so the method label stays bounded.
const UnknownMethod = "unknown"

// Dispatch modes.
const (
	ModeBuffered  = "buffered"
	ModeStreaming = "streaming"
)

// Metrics is a set of collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	streamChunks     *prometheus.CounterVec
	proxyEvents      prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of dispatched method calls",
			},
			[]string{"method", "mode", "outcome"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time from dispatch until the response is complete",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "mode"},
		),
		streamChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_chunks_total",
				Help:      "Total number of content chunks written to streaming responses",
			},
			[]string{"method"},
		),
		proxyEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_events_total",
				Help:      "Total number of SSE events relayed by the passthrough proxy",
			},
		),
	}
}

// ObserveDispatch records one completed dispatch.
func (m *Metrics) ObserveDispatch(method, mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(method, mode, outcome).Inc()
	m.dispatchDuration.WithLabelValues(method, mode).Observe(d.Seconds())
}

// AddStreamChunks records chunks written for a streaming response.
func (m *Metrics) AddStreamChunks(method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamChunks.WithLabelValues(method).Add(float64(n))
}

// AddProxyEvents records events relayed by the proxy.
func (m *Metrics) AddProxyEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.proxyEvents.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
