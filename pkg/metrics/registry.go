// Package metrics defines the observability interfaces consumed by the load
// balancer and the application server, plus the shared Prometheus registry
// they publish to.
//
// Metrics are opt-in: call InitRegistry once at startup when metrics are
// enabled. Before that, the New*Metrics constructors return nil, and all
// recording paths treat a nil collector as a no-op with zero overhead.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry creates the dedicated Prometheus registry.
//
// Call once at startup, before constructing any collectors. Calling it again
// is a no-op. A dedicated registry (instead of prometheus.DefaultRegisterer)
// keeps the scrape output free of Go runtime collectors registered by
// third-party imports.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return registry != nil
}

// GetRegistry returns the shared registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// text exposition format. Returns http.NotFoundHandler when metrics are
// disabled so callers can mount it unconditionally.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
