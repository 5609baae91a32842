package metrics

import (
	"time"
)

// ServerMetrics provides observability for the application server.
//
// Implementations collect metrics about LB connection lifecycle, request
// dispatch, and push delivery. The interface is optional: pass nil to
// disable collection with zero overhead.
type ServerMetrics interface {
	// RecordConnectionAccepted increments the total accepted LB
	// connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed LB connections
	// counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections
	// counter. Called when LB connections are closed after the shutdown
	// timeout.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current LB connection count.
	SetActiveConnections(count int32)

	// RecordRequest records a dispatched request with its outcome.
	//
	// Parameters:
	//   - requestType: Packet type ("login", "refresh", ...); "invalid"
	//     for payloads that never reached a handler
	//   - status: "success" or "error" as sent in the response
	//   - duration: Time from decode to response write
	RecordRequest(requestType string, status string, duration time.Duration)

	// RecordPush records a push payload written to a client id.
	//
	// Parameters:
	//   - pushType: Push discriminator ("notification", "screen_data", ...)
	RecordPush(pushType string)
}

// NewServerMetrics creates a new Prometheus-backed ServerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). When nil
// is returned, callers pass nil to the server, which results in zero
// overhead.
func NewServerMetrics() ServerMetrics {
	if !IsEnabled() {
		return nil
	}

	return newPrometheusServerMetrics()
}

// newPrometheusServerMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle while keeping the API clean.
var newPrometheusServerMetrics func() ServerMetrics

// RegisterServerMetricsConstructor registers the Prometheus server metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterServerMetricsConstructor(constructor func() ServerMetrics) {
	newPrometheusServerMetrics = constructor
}
