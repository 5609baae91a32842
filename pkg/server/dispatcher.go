package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/internal/telemetry"
	"github.com/classmux/classmux/pkg/metrics"
	"github.com/classmux/classmux/pkg/packet"
	"github.com/classmux/classmux/pkg/store"
)

// PushFunc delivers a server-initiated payload to the client addressed by
// targetClientID. It is bound to the load balancer connection the triggering
// request arrived on; delivery to clients held by other load balancer
// instances is out of reach.
type PushFunc func(targetClientID string, payload any) error

// internalErrorResponse is the emergency payload used when a handler result
// fails to marshal. Kept as a literal so the fallback path cannot itself
// fail.
var internalErrorResponse = []byte(`{"status":"error","message":"Internal server error"}`)

// Dispatcher decodes request payloads and routes them to feature handlers.
//
// Every payload produces exactly one response addressed to its originating
// client: malformed or unknown requests produce error responses without
// touching a handler, and the connection stays open either way. Handlers may
// additionally push payloads to other clients through the PushFunc.
type Dispatcher struct {
	store   *store.Store
	metrics metrics.ServerMetrics
}

// NewDispatcher creates a dispatcher over the given store. The metrics
// collector may be nil.
func NewDispatcher(st *store.Store, m metrics.ServerMetrics) *Dispatcher {
	return &Dispatcher{store: st, metrics: m}
}

// Dispatch processes one decoded envelope and returns the response payload
// to send back to clientID.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, payload []byte, push PushFunc) []byte {
	start := time.Now()

	req, err := packet.Decode(payload)
	if err != nil {
		resp := decodeErrorResponse(err)
		logger.Debug("Rejected request payload", "client_id", clientID, "error", err)
		d.recordRequest("invalid", resp.Status, start)
		return marshalResponse(resp)
	}

	ctx, span := telemetry.StartRequestSpan(ctx, req.RequestType(), clientID)
	defer span.End()
	span.SetAttributes(telemetry.PayloadBytes(len(payload)))
	ctx = requestLogContext(ctx, clientID)

	var result any
	switch r := req.(type) {
	case *packet.Login:
		result = d.handleLogin(ctx, clientID, r)
	case *packet.Logout:
		result = d.handleLogout(ctx, clientID, r)
	case *packet.CreateRoom:
		result = d.handleCreateRoom(ctx, clientID, r)
	case *packet.JoinRoom:
		result = d.handleJoinRoom(ctx, clientID, r)
	case *packet.Refresh:
		result = d.handleRefresh(ctx, clientID, r)
	case *packet.Notify:
		result = d.handleNotify(ctx, clientID, r, push)
	case *packet.Streaming:
		result = d.handleStreaming(ctx, clientID, r, push)
	case *packet.ScreenData:
		result = d.handleScreenData(ctx, clientID, r, push)
	case *packet.RequestApp:
		result = d.handleRequestApp(ctx, clientID, r, push)
	case *packet.ReturnApp:
		result = d.handleReturnApp(ctx, clientID, r, push)
	default:
		// Unreachable while packet.Decode and this switch list the same
		// types; kept so a new packet type cannot silently drop requests.
		result = packet.Error(fmt.Sprintf("Unknown request type: %s", req.RequestType()))
	}

	status := responseStatus(result)
	span.SetAttributes(telemetry.RequestStatus(status))
	d.recordRequest(req.RequestType(), status, start)
	return marshalResponse(result)
}

// decodeErrorResponse maps the three decode failure classes onto their
// response messages.
func decodeErrorResponse(err error) packet.Response {
	var unknownType *packet.UnknownTypeError
	var invalid *packet.InvalidError

	switch {
	case errors.Is(err, packet.ErrNotJSON):
		return packet.Error("Invalid request format (not JSON)")
	case errors.As(err, &unknownType):
		return packet.Error(fmt.Sprintf("Unknown request type: %s", unknownType.Type))
	case errors.As(err, &invalid):
		return packet.Error(fmt.Sprintf("Invalid %s data: %v", invalid.Type, invalid.Err))
	default:
		return packet.Error(fmt.Sprintf("Invalid request: %v", err))
	}
}

// marshalResponse serializes a handler result, falling back to a canned
// internal error payload if marshalling fails.
func marshalResponse(result any) []byte {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to marshal response", "error", err)
		return internalErrorResponse
	}
	return data
}

// responseStatus extracts the status field for metrics.
func responseStatus(result any) string {
	switch r := result.(type) {
	case packet.Response:
		return r.Status
	case packet.RefreshResponse:
		return r.Status
	default:
		return packet.StatusError
	}
}

func (d *Dispatcher) recordRequest(requestType, status string, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordRequest(requestType, status, time.Since(start))
	}
}

// recordPush records a delivered push in metrics and as an event on the
// active request span.
func (d *Dispatcher) recordPush(ctx context.Context, pushType, targetClientID string) {
	if d.metrics != nil {
		d.metrics.RecordPush(pushType)
	}
	telemetry.AddEvent(ctx, "push",
		telemetry.PushType(pushType),
		telemetry.PushTarget(targetClientID))
}

// requestLogContext attaches the request identity for the Ctx logging
// variants, extending the connection's LogContext rather than replacing it.
func requestLogContext(ctx context.Context, clientID string) context.Context {
	lc := &logger.LogContext{
		TraceID:  telemetry.TraceID(ctx),
		SpanID:   telemetry.SpanID(ctx),
		ClientID: clientID,
	}
	if prev := logger.FromContext(ctx); prev != nil {
		lc.RemoteAddr = prev.RemoteAddr
	}
	return logger.WithContext(ctx, lc)
}
