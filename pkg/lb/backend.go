package lb

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/wire"
)

// BackendConn is one persistent connection from the load balancer to an
// application server. All traffic for every client routed to this backend is
// multiplexed over it as envelopes.
type BackendConn struct {
	// index is the entry's position in the deduplicated backend list.
	// The directory keys its bookkeeping by index.
	index int

	// addr is the dialed "host:port" string, kept for logging and for
	// detecting address changes at the same index across reloads.
	addr string

	// conn is the underlying TCP connection.
	conn net.Conn

	// writeMu serializes envelope writes so two frames never interleave
	// on the wire. Reads are owned by a single reader goroutine and need
	// no lock.
	writeMu sync.Mutex

	// closeOnce makes close idempotent: reloads, the reader goroutine,
	// and client write failures may all race to close the same conn.
	closeOnce sync.Once

	// closed is set before the socket is torn down, letting the reader
	// tell a deliberate close from a backend failure.
	closed atomic.Bool
}

// dialBackend establishes the persistent connection for one backend entry.
func dialBackend(index int, entry ServerEntry, timeout time.Duration) (*BackendConn, error) {
	conn, err := net.DialTimeout("tcp", entry.Addr(), timeout)
	if err != nil {
		return nil, fmt.Errorf("dial backend %s: %w", entry.Addr(), err)
	}

	// Disable Nagle's algorithm: envelopes are small and latency-bound.
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			logger.Debug("Failed to set TCP_NODELAY on backend connection", "addr", entry.Addr(), "error", err)
		}
	}

	return &BackendConn{
		index: index,
		addr:  entry.Addr(),
		conn:  conn,
	}, nil
}

// Addr returns the backend's dialed address.
func (b *BackendConn) Addr() string {
	return b.addr
}

// writeEnvelope frames a payload for clientID and sends it under the write
// mutex. The frame is built in a pooled buffer and hits the socket in one
// Write call.
func (b *BackendConn) writeEnvelope(f wire.Framer, clientID string, payload []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return f.EncodeTo(b.conn, clientID, payload)
}

// close shuts the TCP connection. Safe to call multiple times; the reader
// goroutine observes the closed socket and exits.
func (b *BackendConn) close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		_ = b.conn.Close()
	})
}

// isClosed reports whether close has been called.
func (b *BackendConn) isClosed() bool {
	return b.closed.Load()
}
