package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadyCheck reports whether the component behind this endpoint can take
// traffic. The returned map is embedded in the probe response body; a
// non-nil error marks the component unready.
type ReadyCheck func(ctx context.Context) (map[string]any, error)

// Response is the envelope every probe reply uses.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// healthHandler serves the probe routes for one component.
type healthHandler struct {
	component string
	ready     ReadyCheck
	startTime time.Time
}

func newHealthHandler(component string, ready ReadyCheck) *healthHandler {
	return &healthHandler{
		component: component,
		ready:     ready,
		startTime: time.Now(),
	}
}

// liveness answers GET /health and /health/live.
//
// Succeeds whenever the HTTP server is responsive; it says nothing about
// the component's ability to serve traffic.
func (h *healthHandler) liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "classmux",
		"component":  h.component,
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// readiness answers GET /health/ready.
//
// Runs the component's ReadyCheck with a bounded context and maps its
// error to 503.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("readiness check not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	data, err := h.ready(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(data))
}
