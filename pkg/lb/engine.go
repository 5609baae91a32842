// Package lb implements the load balancer half of the fabric: a TCP
// front-end that assigns every client connection a UUID v4 client id and
// multiplexes all client traffic over one persistent envelope-framed
// connection per healthy application server.
//
// Client bytes travel unframed on the client hop. Each read of up to
// ClientChunkSize bytes is wrapped in one envelope addressed with the
// client id and written to the next backend in round-robin order; envelope
// payloads coming back from backends are written to the addressed client
// socket with the wrapper stripped.
//
// The backend set lives in a JSON discovery file. The engine probes, dials,
// and diffs the set on startup and on every file modification (fsnotify),
// demoting backends whose connection fails until a later reload re-promotes
// them.
package lb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/bufpool"
	"github.com/classmux/classmux/pkg/metrics"
	"github.com/classmux/classmux/pkg/wire"
)

// clientSession is one accepted client connection and its minted identity.
type clientSession struct {
	// id is the UUID v4 addressing this client on the backend hop.
	id string

	// conn is the raw client socket. Reads are owned by the session
	// goroutine; writes may come from any backend reader.
	conn net.Conn

	// closeOnce makes close idempotent: the session goroutine, backend
	// readers hitting a write failure, and shutdown may all race here.
	closeOnce sync.Once
}

func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// Engine is the load balancer: accept loop, session table, backend
// directory, and discovery-file watcher.
//
// Thread safety:
// All exported methods are safe for concurrent use. Shutdown uses sync.Once
// so Stop may be called multiple times and concurrently with Serve.
type Engine struct {
	// config holds the engine configuration (addresses, timeouts, limits).
	config Config

	// framer encodes client chunks into envelopes; the directory shares
	// it for decoding backend envelopes.
	framer wire.Framer

	// directory tracks backend health, connections, and the round-robin
	// cursor.
	directory *Directory

	// metrics is an optional collector. If nil, no metrics are collected.
	metrics metrics.LBMetrics

	// sessionsMu guards sessions. Backend readers take the read lock per
	// delivered payload, so session churn never blocks the data path for
	// long.
	sessionsMu sync.RWMutex
	sessions   map[string]*clientSession

	// listener accepts client connections. Closed during shutdown.
	listener net.Listener

	// listenerMu protects listener and watcher against concurrent
	// startup and shutdown.
	listenerMu sync.RWMutex

	// watcher observes the directory containing the discovery file.
	watcher *fsnotify.Watcher

	// listenerReady is closed when the listener is accepting. Used by
	// tests to synchronize with startup.
	listenerReady chan struct{}

	// shutdown signals that shutdown has been initiated.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// activeConns tracks session goroutines for graceful shutdown.
	activeConns sync.WaitGroup

	// connCount is the current number of client connections.
	connCount atomic.Int32

	// connSemaphore bounds concurrent clients when MaxConnections > 0.
	connSemaphore chan struct{}
}

// New creates a load balancer engine.
//
// Zero config values are replaced with defaults; an invalid configuration
// panics (programmer error). The metrics collector may be nil.
func New(cfg Config, m metrics.LBMetrics) *Engine {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid load balancer config: %v", err))
	}

	var connSemaphore chan struct{}
	if cfg.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, cfg.MaxConnections)
		logger.Debug("Client connection limit", "max_connections", cfg.MaxConnections)
	} else {
		logger.Debug("Client connection limit", "max_connections", "unlimited")
	}

	framer := wire.NewFramer(cfg.MaxFrameSize)

	e := &Engine{
		config:        cfg,
		framer:        framer,
		metrics:       m,
		sessions:      make(map[string]*clientSession),
		listenerReady: make(chan struct{}),
		shutdown:      make(chan struct{}),
		connSemaphore: connSemaphore,
	}
	e.directory = NewDirectory(DirectoryConfig{
		Path:         cfg.ServersFile,
		ProbeTimeout: cfg.HealthCheckTimeout,
		Framer:       framer,
		Deliver:      e.deliverToClient,
		Metrics:      m,
	})

	return e
}

// Serve starts the load balancer and blocks until the context is cancelled
// or an unrecoverable startup error occurs.
//
// Startup order: ensure the discovery file exists, load the initial backend
// set (failures log and leave the set empty), start the file watcher, then
// accept clients. A failed initial load is not fatal; a watcher or listener
// failure is.
//
// Returns nil on graceful shutdown, an error otherwise.
func (e *Engine) Serve(ctx context.Context) error {
	if err := ensureServersFile(e.config.ServersFile); err != nil {
		return err
	}
	if err := e.directory.Reload(); err != nil {
		logger.Warn("Initial backend load failed, starting with no backends",
			"file", e.config.ServersFile, "error", err)
	}
	if err := e.startWatcher(); err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create load balancer listener on %s: %w", listenAddr, err)
	}

	e.listenerMu.Lock()
	e.listener = listener
	e.listenerMu.Unlock()
	close(e.listenerReady)

	logger.Info("Load balancer listening",
		"address", listener.Addr().String(), "backends", e.directory.BackendCount())

	// Monitor context cancellation in a separate goroutine so the accept
	// loop only deals with connections.
	go func() {
		<-ctx.Done()
		logger.Info("Load balancer shutdown signal received", "error", ctx.Err())
		e.initiateShutdown()
	}()

	go e.directory.Run(e.shutdown)

	for {
		if e.connSemaphore != nil {
			select {
			case e.connSemaphore <- struct{}{}:
			case <-e.shutdown:
				return e.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if e.connSemaphore != nil {
				<-e.connSemaphore
			}

			select {
			case <-e.shutdown:
				// Expected: the listener was closed.
				return e.gracefulShutdown()
			default:
				logger.Debug("Error accepting client connection", "error", err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		sess := &clientSession{
			id:   uuid.New().String(),
			conn: tcpConn,
		}
		e.addSession(sess)

		e.activeConns.Add(1)
		current := e.connCount.Add(1)
		if e.metrics != nil {
			e.metrics.RecordConnectionAccepted()
			e.metrics.SetActiveConnections(current)
		}
		logger.Debug("Client connected",
			"client_id", sess.id, "address", tcpConn.RemoteAddr(), "active", current)

		go e.serveClient(sess)
	}
}

// serveClient reads client chunks and forwards each to a backend until the
// client disconnects, no backend is available, or a backend write fails.
func (e *Engine) serveClient(sess *clientSession) {
	defer func() {
		e.removeSession(sess.id)
		sess.close()

		current := e.connCount.Add(-1)
		if e.connSemaphore != nil {
			<-e.connSemaphore
		}
		if e.metrics != nil {
			e.metrics.RecordConnectionClosed()
			e.metrics.SetActiveConnections(current)
		}
		logger.Debug("Client disconnected", "client_id", sess.id, "active", current)

		// Done last so a completed shutdown wait implies all session
		// bookkeeping has settled.
		e.activeConns.Done()
	}()

	buf := bufpool.Get(e.config.ClientChunkSize)
	defer bufpool.Put(buf)
	for {
		n, err := sess.conn.Read(buf)
		if n > 0 {
			if !e.forwardChunk(sess, buf[:n]) {
				return
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Client read failed", "client_id", sess.id, "error", err)
			}
			return
		}
	}
}

// forwardChunk envelopes one client chunk and writes it to the next backend
// in round-robin order. Reports whether the session may continue: a missing
// backend or a failed backend write drops the client.
func (e *Engine) forwardChunk(sess *clientSession, chunk []byte) bool {
	bc, err := e.directory.Select()
	if err != nil {
		logger.Warn("No healthy backend, dropping client",
			"client_id", sess.id, "bytes", len(chunk))
		if e.metrics != nil {
			e.metrics.RecordNoBackend()
		}
		return false
	}

	if err := bc.writeEnvelope(e.framer, sess.id, chunk); err != nil {
		// Validation failures are a local encoding problem, not evidence
		// against the backend. Config validation makes them unreachable
		// for full chunk reads, but a raised chunk size plus a long id
		// could still trip the frame cap.
		if errors.Is(err, wire.ErrClientIDTooLong) || errors.Is(err, wire.ErrFrameTooLarge) {
			logger.Error("Failed to encode client chunk", "client_id", sess.id, "error", err)
			return false
		}

		logger.Warn("Backend write failed, dropping client",
			"client_id", sess.id, "backend", bc.addr, "error", err)
		e.directory.closeBackendConn(bc)
		return false
	}

	if e.metrics != nil {
		e.metrics.RecordChunkForwarded(len(chunk))
	}
	return true
}

// deliverToClient writes a backend payload to the addressed client socket.
//
// Reports whether the client id named a live session. A write failure drops
// the session (its goroutine observes the closed socket) but still counts
// as a known client, so the caller does not log it as an unknown id.
func (e *Engine) deliverToClient(clientID string, payload []byte) bool {
	e.sessionsMu.RLock()
	sess, ok := e.sessions[clientID]
	e.sessionsMu.RUnlock()
	if !ok {
		return false
	}

	if _, err := sess.conn.Write(payload); err != nil {
		logger.Debug("Client write failed, dropping session", "client_id", clientID, "error", err)
		sess.close()
	}
	return true
}

func (e *Engine) addSession(sess *clientSession) {
	e.sessionsMu.Lock()
	e.sessions[sess.id] = sess
	e.sessionsMu.Unlock()
}

func (e *Engine) removeSession(id string) {
	e.sessionsMu.Lock()
	delete(e.sessions, id)
	e.sessionsMu.Unlock()
}

// startWatcher begins watching the directory containing the discovery file.
// Watching the parent directory keeps the watch alive across editors and
// tools that replace the file on save.
func (e *Engine) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize backend file watcher: %w", err)
	}

	dir := filepath.Dir(e.config.ServersFile)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	e.listenerMu.Lock()
	e.watcher = watcher
	e.listenerMu.Unlock()

	go e.watchLoop(watcher)
	logger.Debug("Watching backend file", "file", e.config.ServersFile)
	return nil
}

// watchLoop schedules a coalesced reload for every event touching the
// discovery file. Exits when the watcher is closed.
func (e *Engine) watchLoop(watcher *fsnotify.Watcher) {
	target := filepath.Clean(e.config.ServersFile)
	changeOps := fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&changeOps == 0 {
				continue
			}
			logger.Debug("Backend file changed", "op", event.Op.String(), "path", event.Name)
			e.directory.ScheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Backend file watcher error", "error", err)
		}
	}
}

// initiateShutdown signals the engine to begin shutdown.
//
// Sequence:
//  1. Close the shutdown channel (stops the accept loop and reload worker)
//  2. Close the watcher (no further reloads get scheduled)
//  3. Close the listener (no new clients)
//  4. Close every client connection without draining
//
// Safe to call multiple times and from multiple goroutines.
func (e *Engine) initiateShutdown() {
	e.shutdownOnce.Do(func() {
		logger.Debug("Load balancer shutdown initiated")

		close(e.shutdown)

		e.listenerMu.Lock()
		if e.watcher != nil {
			_ = e.watcher.Close()
		}
		if e.listener != nil {
			if err := e.listener.Close(); err != nil {
				logger.Debug("Error closing load balancer listener", "error", err)
			}
		}
		e.listenerMu.Unlock()

		e.closeAllSessions()
	})
}

// closeAllSessions force-closes every client socket. Session goroutines
// observe the closed sockets and exit.
func (e *Engine) closeAllSessions() {
	e.sessionsMu.RLock()
	sessions := make([]*clientSession, 0, len(e.sessions))
	for _, sess := range e.sessions {
		sessions = append(sessions, sess)
	}
	e.sessionsMu.RUnlock()

	for _, sess := range sessions {
		sess.close()
		if e.metrics != nil {
			e.metrics.RecordConnectionForceClosed()
		}
	}
	if len(sessions) > 0 {
		logger.Info("Closed client connections", "count", len(sessions))
	}
}

// gracefulShutdown waits for session goroutines to exit, then tears down the
// backend side. Client sockets are already closed, so the wait is normally
// immediate; the timeout covers goroutines stuck behind a running reload.
func (e *Engine) gracefulShutdown() error {
	active := e.connCount.Load()
	logger.Info("Load balancer shutting down",
		"active_clients", active, "timeout", e.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		e.activeConns.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(e.config.ShutdownTimeout):
		remaining := e.connCount.Load()
		logger.Warn("Shutdown timeout exceeded",
			"active_clients", remaining, "timeout", e.config.ShutdownTimeout)
		err = fmt.Errorf("load balancer shutdown timeout: %d client connections still active", remaining)
	}

	e.directory.Close()
	logger.Info("Load balancer shutdown complete")
	return err
}

// Stop initiates graceful shutdown and waits for it to complete.
//
// Safe to call multiple times and concurrently with Serve.
func (e *Engine) Stop() error {
	e.initiateShutdown()
	return e.gracefulShutdown()
}

// GetListenerAddr returns the address the engine is listening on. Blocks
// until the listener is ready, making it safe for tests.
func (e *Engine) GetListenerAddr() string {
	<-e.listenerReady

	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()

	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// GetActiveConnections returns the current number of client connections.
func (e *Engine) GetActiveConnections() int32 {
	return e.connCount.Load()
}

// Directory exposes the backend directory, primarily for tests and the ops
// readiness probe.
func (e *Engine) Directory() *Directory {
	return e.directory
}
