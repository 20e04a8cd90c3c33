package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Endpoint metrics
	EndpointInstances *prometheus.CounterVec
	Confirmations     *prometheus.CounterVec

	// Bridge metrics
	BridgeCalls       *prometheus.CounterVec
	BridgeDuration    *prometheus.HistogramVec
	BridgeConnections *prometheus.GaugeVec

	// Forward proxy metrics
	ProxiedRequests *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsReaped prometheus.Counter

	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the health endpoint
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	BridgeCalls   int64   `json:"bridge_calls"`
	BridgeErrors  int64   `json:"bridge_errors"`
	Uptime        float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry, so tests and
// multiple servers in one process never collide on registration
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wdproxy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wdproxy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wdproxy_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		EndpointInstances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wdproxy_endpoint_instances_total",
				Help: "Endpoint instances created, by command name",
			},
			[]string{"command"},
		),
		Confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wdproxy_confirmations_total",
				Help: "Confirmation mailbox transitions",
			},
			[]string{"command", "event"},
		),

		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wdproxy_bridge_calls_total",
				Help: "Commands delivered to the browser, by outcome",
			},
			[]string{"command", "outcome"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wdproxy_bridge_call_duration_seconds",
				Help:    "Time from enqueue to browser reply",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"command"},
		),
		BridgeConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wdproxy_bridge_connections",
				Help: "Browser runtimes currently attached, by transport",
			},
			[]string{"transport"},
		),

		ProxiedRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wdproxy_forwarded_requests_total",
				Help: "Requests forwarded to origin servers",
			},
			[]string{"outcome", "injected"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wdproxy_sessions_active",
				Help: "Number of live automation sessions",
			},
		),
		SessionsReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wdproxy_sessions_reaped_total",
				Help: "Sessions destroyed by the idle reaper",
			},
		),
	}

	return m
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordEndpointInstance counts one endpoint instantiation
func (m *Metrics) RecordEndpointInstance(command string) {
	m.EndpointInstances.WithLabelValues(command).Inc()
}

// RecordConfirmation counts a mailbox transition (staged, collected, overwritten)
func (m *Metrics) RecordConfirmation(command, event string) {
	m.Confirmations.WithLabelValues(command, event).Inc()
}

// RecordBridgeCall records a browser round trip
func (m *Metrics) RecordBridgeCall(command, outcome string, duration time.Duration) {
	m.BridgeCalls.WithLabelValues(command, outcome).Inc()
	if duration > 0 {
		m.BridgeDuration.WithLabelValues(command).Observe(duration.Seconds())
	}

	m.mu.Lock()
	m.snapshot.BridgeCalls++
	if outcome != "ok" && outcome != "pushed" {
		m.snapshot.BridgeErrors++
	}
	m.mu.Unlock()
}

// IncBridgeConnections increments attached runtimes for a transport
func (m *Metrics) IncBridgeConnections(transport string) {
	m.BridgeConnections.WithLabelValues(transport).Inc()
}

// DecBridgeConnections decrements attached runtimes for a transport
func (m *Metrics) DecBridgeConnections(transport string) {
	m.BridgeConnections.WithLabelValues(transport).Dec()
}

// RecordProxied records a forwarded request
func (m *Metrics) RecordProxied(outcome string, injected bool) {
	inj := "false"
	if injected {
		inj = "true"
	}
	m.ProxiedRequests.WithLabelValues(outcome, inj).Inc()
}

// SetSessionsActive sets the number of live sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// AddSessionsReaped counts sessions destroyed by the reaper
func (m *Metrics) AddSessionsReaped(n int) {
	m.SessionsReaped.Add(float64(n))
}

// GetSnapshot returns a copy of the running totals
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.Uptime = time.Since(m.startTime).Seconds()
	return s
}
