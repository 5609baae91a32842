package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/classmux/classmux/pkg/metrics"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	pushesTotal            *prometheus.CounterVec
}

// NewServerMetrics creates a new Prometheus-backed ServerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_server_lb_connections_accepted_total",
				Help: "Total number of load balancer connections accepted by the server",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_server_lb_connections_closed_total",
				Help: "Total number of load balancer connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_server_lb_connections_force_closed_total",
				Help: "Total number of load balancer connections force-closed during shutdown",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "classmux_server_lb_active_connections",
				Help: "Current number of load balancer connections",
			},
		),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "classmux_server_requests_total",
				Help: "Total number of dispatched requests by packet type and status",
			},
			[]string{"type", "status"}, // type "login", "refresh", ...; status "success", "error"
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "classmux_server_request_duration_milliseconds",
				Help: "Duration of request handling in milliseconds",
				Buckets: []float64{
					1,    // 1ms - in-memory lookups
					5,    // 5ms - single database query
					10,   // 10ms
					50,   // 50ms - multi-row transactions
					100,  // 100ms
					500,  // 500ms - fan-out pushes
					1000, // 1s
					5000, // 5s - pathological
				},
			},
			[]string{"type"},
		),
		pushesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "classmux_server_pushes_total",
				Help: "Total number of push payloads written to client ids",
			},
			[]string{"type"}, // "notification", "streaming_request", "screen_data", ...
		),
	}
}

func (m *serverMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordRequest(requestType string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(requestType, status).Inc()
	m.requestDuration.WithLabelValues(requestType).Observe(duration.Seconds() * 1000)
}

func (m *serverMetrics) RecordPush(pushType string) {
	if m == nil {
		return
	}
	m.pushesTotal.WithLabelValues(pushType).Inc()
}
