package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared across the fabric. Component-specific keys carry
// their component's prefix (mux., lb., room.); the rest follow OpenTelemetry
// semantic conventions where one applies.
const (
	AttrClientID     = "mux.client_id"     // session id minted by the load balancer
	AttrPayloadBytes = "mux.payload_bytes" // payload size inside the envelope

	AttrBackendAddr  = "lb.backend"       // host:port of one backend
	AttrBackendCount = "lb.backend_count" // healthy-and-connected backends
	AttrServersFile  = "lb.servers_file"  // discovery file path

	AttrRequestType   = "request.type"   // login, notify, streaming, ...
	AttrRequestStatus = "request.status" // success or error

	AttrPushType   = "push.type"   // notification, screen_data, ...
	AttrPushTarget = "push.target" // target client id

	AttrRoomID   = "room.id"
	AttrUsername = "user.name"
	AttrUserRole = "user.role"
)

// Span names, <component>.<operation>. SpanServerRequest is a prefix: the
// request type is appended, e.g. "server.login".
const (
	SpanServerRequest = "server."
	SpanLBReload      = "lb.reload"
)

// ClientID returns an attribute for the multiplexed session id.
func ClientID(id string) attribute.KeyValue {
	return attribute.String(AttrClientID, id)
}

// PayloadBytes returns an attribute for the envelope payload size.
func PayloadBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrPayloadBytes, n)
}

// BackendAddr returns an attribute for one backend's address.
func BackendAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrBackendAddr, addr)
}

// BackendCount returns an attribute for the routable backend count.
func BackendCount(n int) attribute.KeyValue {
	return attribute.Int(AttrBackendCount, n)
}

// ServersFile returns an attribute for the discovery file path.
func ServersFile(path string) attribute.KeyValue {
	return attribute.String(AttrServersFile, path)
}

// RequestType returns an attribute for the request discriminator.
func RequestType(t string) attribute.KeyValue {
	return attribute.String(AttrRequestType, t)
}

// RequestStatus returns an attribute for the response status.
func RequestStatus(status string) attribute.KeyValue {
	return attribute.String(AttrRequestStatus, status)
}

// PushType returns an attribute for the push discriminator.
func PushType(t string) attribute.KeyValue {
	return attribute.String(AttrPushType, t)
}

// PushTarget returns an attribute for the push target client id.
func PushTarget(id string) attribute.KeyValue {
	return attribute.String(AttrPushTarget, id)
}

// RoomID returns an attribute for the classroom id.
func RoomID(id string) attribute.KeyValue {
	return attribute.String(AttrRoomID, id)
}

// Username returns an attribute for the account name.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// UserRole returns an attribute for the account role.
func UserRole(role string) attribute.KeyValue {
	return attribute.String(AttrUserRole, role)
}

// StartRequestSpan starts the root span for one dispatched request, named
// "server.<type>" and carrying the session id and request type. The caller
// must End the returned span.
func StartRequestSpan(ctx context.Context, requestType, clientID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanServerRequest+requestType,
		trace.WithAttributes(
			ClientID(clientID),
			RequestType(requestType),
		))
}
