// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces in pkg/metrics.
//
// Importing this package (usually as a blank import from a command)
// registers the implementations with pkg/metrics; the nil-returning
// constructors there hand them out once InitRegistry has been called.
package prometheus

import (
	"github.com/classmux/classmux/pkg/metrics"
)

func init() {
	metrics.RegisterLBMetricsConstructor(NewLBMetrics)
	metrics.RegisterServerMetricsConstructor(NewServerMetrics)
}
