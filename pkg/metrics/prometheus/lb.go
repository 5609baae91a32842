package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/classmux/classmux/pkg/metrics"
)

// lbMetrics is the Prometheus implementation of metrics.LBMetrics.
type lbMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	chunksForwarded        prometheus.Counter
	chunkBytes             prometheus.Counter
	payloadsDelivered      prometheus.Counter
	payloadBytes           prometheus.Counter
	payloadsDropped        prometheus.Counter
	noBackend              prometheus.Counter
	backends               prometheus.Gauge
	reloads                *prometheus.CounterVec
}

// NewLBMetrics creates a new Prometheus-backed LBMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLBMetrics() metrics.LBMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &lbMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_connections_accepted_total",
				Help: "Total number of client connections accepted by the load balancer",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_connections_closed_total",
				Help: "Total number of client connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_connections_force_closed_total",
				Help: "Total number of client connections force-closed during shutdown",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "classmux_lb_active_connections",
				Help: "Current number of client connections",
			},
		),
		chunksForwarded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_chunks_forwarded_total",
				Help: "Total number of client chunks enveloped and forwarded to a backend",
			},
		),
		chunkBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_chunk_bytes_total",
				Help: "Total client payload bytes forwarded to backends",
			},
		),
		payloadsDelivered: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_payloads_delivered_total",
				Help: "Total number of backend payloads delivered to client sockets",
			},
		),
		payloadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_payload_bytes_total",
				Help: "Total backend payload bytes delivered to clients",
			},
		),
		payloadsDropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_payloads_dropped_total",
				Help: "Total number of backend payloads dropped because no live session matched their client id",
			},
		),
		noBackend: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "classmux_lb_no_backend_total",
				Help: "Total number of client chunks dropped because no healthy backend was connected",
			},
		),
		backends: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "classmux_lb_backends",
				Help: "Current number of healthy, connected backends in the round-robin set",
			},
		),
		reloads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "classmux_lb_reloads_total",
				Help: "Total number of backend file reloads by status",
			},
			[]string{"status"}, // "success", "error"
		),
	}
}

func (m *lbMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *lbMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *lbMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *lbMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *lbMetrics) RecordChunkForwarded(bytes int) {
	if m == nil {
		return
	}
	m.chunksForwarded.Inc()
	if bytes > 0 {
		m.chunkBytes.Add(float64(bytes))
	}
}

func (m *lbMetrics) RecordPayloadDelivered(bytes int) {
	if m == nil {
		return
	}
	m.payloadsDelivered.Inc()
	if bytes > 0 {
		m.payloadBytes.Add(float64(bytes))
	}
}

func (m *lbMetrics) RecordPayloadDropped() {
	if m == nil {
		return
	}
	m.payloadsDropped.Inc()
}

func (m *lbMetrics) RecordNoBackend() {
	if m == nil {
		return
	}
	m.noBackend.Inc()
}

func (m *lbMetrics) SetBackendCount(count int) {
	if m == nil {
		return
	}
	m.backends.Set(float64(count))
}

func (m *lbMetrics) RecordReload(success bool) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	m.reloads.WithLabelValues(status).Inc()
}
