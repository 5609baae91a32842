// Package server implements the application server half of the fabric: it
// accepts persistent envelope-framed connections from load balancer
// instances, dispatches the JSON requests multiplexed over them to feature
// handlers, and pushes server-initiated payloads back through the same
// connections addressed by client id.
//
// One connection carries the traffic of many clients. Each frame names the
// originating client; the server replies to that id and remembers the last
// id seen on the connection so a dead load balancer link can be cleaned out
// of the shared client directory.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/metrics"
	"github.com/classmux/classmux/pkg/store"
	"github.com/classmux/classmux/pkg/wire"
)

// Server is the application server: accept loop, per-connection framer
// loops, and the request dispatcher.
//
// Thread safety:
// All exported methods are safe for concurrent use. Shutdown uses sync.Once
// so Stop may be called multiple times and concurrently with Serve.
type Server struct {
	// config holds the server configuration (address, frame cap, limits).
	config Config

	// framer decodes inbound envelopes and encodes responses and pushes.
	framer wire.Framer

	// store backs authentication, rooms, and the shared client directory.
	store *store.Store

	// dispatcher routes decoded requests to their handlers.
	dispatcher *Dispatcher

	// metrics is an optional collector. If nil, no metrics are collected.
	metrics metrics.ServerMetrics

	// listener accepts load balancer connections. Closed during shutdown.
	listener net.Listener

	// listenerMu protects listener against concurrent startup and shutdown.
	listenerMu sync.RWMutex

	// listenerReady is closed when the listener is accepting. Used by
	// tests to synchronize with startup.
	listenerReady chan struct{}

	// shutdown signals that shutdown has been initiated.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// activeConns tracks connection goroutines for graceful shutdown.
	activeConns sync.WaitGroup

	// connCount is the current number of load balancer connections.
	connCount atomic.Int32

	// connSemaphore bounds concurrent connections when MaxConnections > 0.
	connSemaphore chan struct{}

	// connsMu guards conns, the set of live connections, used at shutdown
	// to interrupt blocking reads and force-close stragglers.
	connsMu sync.Mutex
	conns   map[*lbConn]struct{}
}

// New creates an application server backed by the given store.
//
// Zero config values are replaced with defaults; an invalid configuration
// panics (programmer error). The metrics collector may be nil.
func New(cfg Config, st *store.Store, m metrics.ServerMetrics) *Server {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid application server config: %v", err))
	}

	var connSemaphore chan struct{}
	if cfg.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, cfg.MaxConnections)
		logger.Debug("Load balancer connection limit", "max_connections", cfg.MaxConnections)
	} else {
		logger.Debug("Load balancer connection limit", "max_connections", "unlimited")
	}

	return &Server{
		config:        cfg,
		framer:        wire.NewFramer(cfg.MaxFrameSize),
		store:         st,
		dispatcher:    NewDispatcher(st, m),
		metrics:       m,
		listenerReady: make(chan struct{}),
		shutdown:      make(chan struct{}),
		connSemaphore: connSemaphore,
		conns:         make(map[*lbConn]struct{}),
	}
}

// Serve starts the application server and blocks until the context is
// cancelled or an unrecoverable startup error occurs.
//
// Returns nil on graceful shutdown, an error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	listenAddr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create application server listener on %s: %w", listenAddr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("Application server listening", "address", listener.Addr().String())

	// Monitor context cancellation in a separate goroutine so the accept
	// loop only deals with connections.
	go func() {
		<-ctx.Done()
		logger.Info("Application server shutdown signal received", "error", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				// Expected: the listener was closed.
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting load balancer connection", "error", err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		c := newLBConn(s, tcpConn)
		s.addConn(c)

		s.activeConns.Add(1)
		current := s.connCount.Add(1)
		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
			s.metrics.SetActiveConnections(current)
		}
		logger.Debug("Load balancer connected",
			"address", tcpConn.RemoteAddr(), "active", current)

		go c.serve(ctx)
	}
}

func (s *Server) addConn(c *lbConn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) removeConn(c *lbConn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// initiateShutdown signals the server to begin shutdown.
//
// Sequence:
//  1. Close the shutdown channel (stops the accept loop)
//  2. Close the listener (no new connections)
//  3. Interrupt blocking reads so connection goroutines can finish their
//     in-flight write, run directory cleanup, and exit
//
// Safe to call multiple times and from multiple goroutines.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Application server shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing application server listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		s.interruptBlockingReads()
	})
}

// interruptBlockingReads sets a short deadline on every live connection so
// goroutines blocked in Decode wake up and observe the shutdown.
func (s *Server) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	for c := range s.conns {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			logger.Debug("Error setting shutdown deadline on connection",
				"address", c.conn.RemoteAddr(), "error", err)
		}
	}
}

// gracefulShutdown waits for connection goroutines to finish their cleanup,
// force-closing whatever is still alive after the timeout.
func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("Application server shutting down",
		"active_connections", active, "timeout", s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Application server shutdown complete")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded, forcing closure",
			"active_connections", remaining, "timeout", s.config.ShutdownTimeout)
		s.forceCloseConns()
		return fmt.Errorf("application server shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConns closes every remaining connection socket.
func (s *Server) forceCloseConns() {
	s.connsMu.Lock()
	conns := make([]*lbConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
		if s.metrics != nil {
			s.metrics.RecordConnectionForceClosed()
		}
	}
	if len(conns) > 0 {
		logger.Info("Force-closed load balancer connections", "count", len(conns))
	}
}

// Stop initiates graceful shutdown and waits for it to complete.
//
// Safe to call multiple times and concurrently with Serve.
func (s *Server) Stop() error {
	s.initiateShutdown()
	return s.gracefulShutdown()
}

// GetListenerAddr returns the address the server is listening on. Blocks
// until the listener is ready, making it safe for tests.
func (s *Server) GetListenerAddr() string {
	<-s.listenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetActiveConnections returns the current number of load balancer
// connections.
func (s *Server) GetActiveConnections() int32 {
	return s.connCount.Load()
}
