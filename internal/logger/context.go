package logger

import "context"

// Keys for the fields prepended by the Ctx logging variants.
const (
	keyTraceID    = "trace_id"
	keySpanID     = "span_id"
	keyClientID   = "client_id"
	keyRemoteAddr = "remote_addr"
)

type lcKey struct{}

// LogContext is the request-scoped identity attached to log lines written
// through the Ctx variants: which trace, which client session, which load
// balancer peer.
type LogContext struct {
	TraceID    string
	SpanID     string
	ClientID   string // session id minted by the load balancer
	RemoteAddr string // peer address of the connection the request rode in on
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, lcKey{}, lc)
}

// FromContext returns the attached LogContext, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(lcKey{}).(*LogContext)
	return lc
}

// prepend returns args with the context's non-empty fields in front, so
// identity reads first on every line. Safe on a nil receiver.
func (lc *LogContext) prepend(args []any) []any {
	if lc == nil {
		return args
	}

	out := make([]any, 0, 8+len(args))
	if lc.TraceID != "" {
		out = append(out, keyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, keySpanID, lc.SpanID)
	}
	if lc.ClientID != "" {
		out = append(out, keyClientID, lc.ClientID)
	}
	if lc.RemoteAddr != "" {
		out = append(out, keyRemoteAddr, lc.RemoteAddr)
	}
	return append(out, args...)
}
