package metrics

// LBMetrics provides observability for the load balancer.
//
// Implementations collect metrics about client connection lifecycle, chunk
// forwarding, backend payload delivery, and backend directory churn. The
// interface is optional: pass nil to disable collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	engine := lb.New(cfg, metrics.NewLBMetrics())
//
//	// Without metrics (pass nil for zero overhead)
//	engine := lb.New(cfg, nil)
type LBMetrics interface {
	// RecordConnectionAccepted increments the total accepted client
	// connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed client
	// connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections
	// counter. Called when client connections are closed after the
	// shutdown timeout.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current client connection count.
	SetActiveConnections(count int32)

	// RecordChunkForwarded records one client chunk enveloped and written
	// to a backend.
	//
	// Parameters:
	//   - bytes: Payload size of the chunk
	RecordChunkForwarded(bytes int)

	// RecordPayloadDelivered records one backend envelope payload written
	// to a client socket.
	//
	// Parameters:
	//   - bytes: Payload size delivered
	RecordPayloadDelivered(bytes int)

	// RecordPayloadDropped increments the counter of backend payloads
	// dropped because their client id matched no live session.
	RecordPayloadDropped()

	// RecordNoBackend increments the counter of client chunks dropped
	// because no healthy backend was connected.
	RecordNoBackend()

	// SetBackendCount updates the gauge of backends currently healthy and
	// connected (the round-robin set).
	SetBackendCount(count int)

	// RecordReload records a completed reload of the backend file.
	//
	// Parameters:
	//   - success: Whether the file was read, parsed, and applied
	RecordReload(success bool)
}

// NewLBMetrics creates a new Prometheus-backed LBMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). When nil
// is returned, callers pass nil to the engine, which results in zero
// overhead.
func NewLBMetrics() LBMetrics {
	if !IsEnabled() {
		return nil
	}

	return newPrometheusLBMetrics()
}

// newPrometheusLBMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle while keeping the API clean.
var newPrometheusLBMetrics func() LBMetrics

// RegisterLBMetricsConstructor registers the Prometheus LB metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterLBMetricsConstructor(constructor func() LBMetrics) {
	newPrometheusLBMetrics = constructor
}
