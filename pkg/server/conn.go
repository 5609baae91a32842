package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/classmux/classmux/internal/logger"
)

// cleanupTimeout bounds the directory cleanup performed when a connection
// dies; the serve context may already be cancelled by then.
const cleanupTimeout = 5 * time.Second

// lbConn is one accepted connection from a load balancer instance. All
// clients routed through that load balancer share it, so requests are
// dispatched sequentially in decode order and every write names the client
// the envelope is for.
type lbConn struct {
	server *Server
	conn   net.Conn

	// writeMu serializes response and push writes so two envelopes never
	// interleave on the wire.
	writeMu sync.Mutex

	// lastClientID is the most recent client id decoded on this
	// connection. Only the serve goroutine touches it; disconnect cleanup
	// unregisters it from the directory.
	lastClientID string
}

func newLBConn(s *Server, conn net.Conn) *lbConn {
	return &lbConn{server: s, conn: conn}
}

// serve decodes envelopes and dispatches them until the connection fails,
// the context is cancelled, or the server shuts down.
//
// Handler panics are recovered here so a single misbehaving request cannot
// take the whole server down.
func (c *lbConn) serve(ctx context.Context) {
	addr := c.conn.RemoteAddr().String()
	defer c.finish(addr)

	// Handler log lines carry the peer address through the context.
	ctx = logger.WithContext(ctx, &logger.LogContext{RemoteAddr: addr})

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Connection closed due to context cancellation", "address", addr)
			return
		case <-c.server.shutdown:
			logger.Debug("Connection closed due to server shutdown", "address", addr)
			return
		default:
		}

		clientID, payload, err := c.server.framer.Decode(c.conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("Connection closed by load balancer", "address", addr)
			case isTimeout(err):
				logger.Debug("Connection read interrupted", "address", addr)
			default:
				logger.Warn("Dropping connection on framing error", "address", addr, "error", err)
			}
			return
		}

		c.lastClientID = clientID

		response := c.server.dispatcher.Dispatch(ctx, clientID, payload, c.push)
		if err := c.writeEnvelope(clientID, response); err != nil {
			logger.Warn("Response write failed, dropping connection",
				"address", addr, "client_id", clientID, "error", err)
			return
		}
	}
}

// push marshals a server-initiated payload and writes it addressed to
// targetClientID on this connection. The load balancer that owns the target
// client routes it to the client socket; if the target is connected through
// a different load balancer instance, the envelope is dropped there.
func (c *lbConn) push(targetClientID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	return c.writeEnvelope(targetClientID, data)
}

// writeEnvelope frames a payload for clientID and writes it under the write
// mutex. The frame is built in a pooled buffer and hits the socket in one
// Write call, so responses and pushes never interleave.
func (c *lbConn) writeEnvelope(clientID string, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.server.framer.EncodeTo(c.conn, clientID, payload)
}

// finish runs the connection teardown: panic recovery, directory cleanup for
// the last client seen on this connection, socket close, and server
// bookkeeping.
func (c *lbConn) finish(addr string) {
	if r := recover(); r != nil {
		logger.Error("Panic in connection handler",
			"address", addr, "error", r, "stack", string(debug.Stack()))
	}

	c.cleanup()
	_ = c.conn.Close()

	s := c.server
	s.removeConn(c)
	current := s.connCount.Add(-1)
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
	if s.metrics != nil {
		s.metrics.RecordConnectionClosed()
		s.metrics.SetActiveConnections(current)
	}
	logger.Debug("Load balancer disconnected", "address", addr, "active", current)

	// Done last so a completed shutdown wait implies all connection
	// bookkeeping has settled.
	s.activeConns.Done()
}

// cleanup unregisters the last-seen client id so the user behind a dead
// connection no longer appears online. Errors are logged and swallowed: the
// row also falls to the next Register claiming the same client id.
func (c *lbConn) cleanup() {
	if c.lastClientID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := c.server.store.UnregisterClientID(ctx, c.lastClientID); err != nil {
		logger.Warn("Disconnect cleanup failed", "client_id", c.lastClientID, "error", err)
		return
	}
	logger.Debug("Unregistered disconnected client", "client_id", c.lastClientID)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
