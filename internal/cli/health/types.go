// Package health provides shared types for ops endpoint responses.
package health

// Response represents the ops liveness response structure.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		Component string `json:"component"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// ReadyResponse represents the ops readiness response structure.
// Data carries component-specific fields (backend counts for the load
// balancer, database details for the application server).
type ReadyResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Error     string         `json:"error,omitempty"`
}
