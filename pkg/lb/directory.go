package lb

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/internal/telemetry"
	"github.com/classmux/classmux/pkg/metrics"
	"github.com/classmux/classmux/pkg/wire"
)

// ErrNoBackend is returned by Select when no backend is both healthy and
// connected.
var ErrNoBackend = errors.New("no healthy backend available")

// DeliverFunc routes a payload decoded from a backend envelope to the client
// session it is addressed to. It reports whether the client id was known;
// payloads for unknown ids are dropped by the caller.
type DeliverFunc func(clientID string, payload []byte) bool

// DirectoryConfig holds the dependencies and tunables of a Directory.
type DirectoryConfig struct {
	// Path is the backend discovery file (JSON array of {host, port}).
	Path string

	// ProbeTimeout is the TCP connect deadline for health probes.
	// Defaults to 1s.
	ProbeTimeout time.Duration

	// DialTimeout is the deadline for establishing backend connections.
	// Defaults to twice ProbeTimeout.
	DialTimeout time.Duration

	// Framer decodes envelopes arriving from backends.
	Framer wire.Framer

	// Deliver routes decoded payloads to client sessions.
	Deliver DeliverFunc

	// Metrics is an optional collector (nil disables).
	Metrics metrics.LBMetrics
}

// Directory tracks the backend set: the parsed entry list, which entries are
// healthy, the persistent connection per entry, and the round-robin cursor
// over entries that are both.
//
// One exclusive mutex serializes reloads and close bookkeeping; Select takes
// it only long enough to advance the cursor and fetch a connection. Reloads
// requested while one is running coalesce into a single trailing reload.
type Directory struct {
	path         string
	probeTimeout time.Duration
	dialTimeout  time.Duration
	framer       wire.Framer
	deliver      DeliverFunc
	metrics      metrics.LBMetrics

	mu        sync.Mutex
	entries   []ServerEntry
	conns     map[int]*BackendConn
	cursor    []int
	cursorPos int
	closed    bool

	// reloads carries coalesced reload requests to Run. Capacity 1: the
	// buffered slot is the "one extra reload follows" guarantee.
	reloads chan struct{}

	// readers tracks the per-backend reader goroutines for shutdown.
	readers sync.WaitGroup
}

// NewDirectory creates an empty directory. Call Reload to populate it and
// Run (in a goroutine) to consume scheduled reloads.
func NewDirectory(cfg DirectoryConfig) *Directory {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * cfg.ProbeTimeout
	}

	return &Directory{
		path:         cfg.Path,
		probeTimeout: cfg.ProbeTimeout,
		dialTimeout:  cfg.DialTimeout,
		framer:       cfg.Framer,
		deliver:      cfg.Deliver,
		metrics:      cfg.Metrics,
		conns:        make(map[int]*BackendConn),
		reloads:      make(chan struct{}, 1),
	}
}

// Reload re-reads the discovery file and reconciles connections against it.
//
// Steps, all under the directory mutex:
//  1. Parse the file, deduplicating by address (first occurrence wins).
//     On failure the prior backend set stays in effect and the error is
//     returned.
//  2. Probe every entry concurrently.
//  3. Close connections whose index disappeared, went unhealthy, or now
//     names a different address; dial newly healthy indices. A dial failure
//     demotes that index for this cycle.
//  4. Rebuild the round-robin cursor over healthy-and-connected indices,
//     ascending. The cursor does not preserve its position across rebuilds.
func (d *Directory) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	// Reloads are triggered by file events and timers, not requests, so the
	// span roots its own trace.
	ctx, span := telemetry.StartSpan(context.Background(), telemetry.SpanLBReload)
	defer span.End()
	span.SetAttributes(telemetry.ServersFile(d.path))

	entries, err := loadServers(d.path)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordReload(false)
		}
		telemetry.RecordError(ctx, err)
		return err
	}

	healthy := d.probeAll(entries)

	// Close connections that no longer belong.
	for idx, bc := range d.conns {
		keep := idx < len(entries) && healthy[idx] && entries[idx].Addr() == bc.addr
		if keep {
			continue
		}
		delete(d.conns, idx)
		bc.close()
		logger.Info("Backend connection dropped", "index", idx, "addr", bc.addr)
	}

	// Dial newly healthy indices.
	for idx, entry := range entries {
		if !healthy[idx] {
			continue
		}
		if _, ok := d.conns[idx]; ok {
			continue
		}
		bc, err := dialBackend(idx, entry, d.dialTimeout)
		if err != nil {
			healthy[idx] = false
			telemetry.AddEvent(ctx, "backend.dial_failed", telemetry.BackendAddr(entry.Addr()))
			logger.Warn("Backend dial failed", "index", idx, "addr", entry.Addr(), "error", err)
			continue
		}
		d.conns[idx] = bc
		d.readers.Add(1)
		go d.readLoop(bc)
		logger.Info("Backend connected", "index", idx, "addr", bc.addr)
	}

	d.entries = entries

	// Rebuild the cursor over healthy ∩ connected, ascending by index.
	d.cursor = d.cursor[:0]
	healthyCount := 0
	for idx := range entries {
		if !healthy[idx] {
			continue
		}
		healthyCount++
		if _, ok := d.conns[idx]; ok {
			d.cursor = append(d.cursor, idx)
		}
	}
	d.cursorPos = 0

	if d.metrics != nil {
		d.metrics.SetBackendCount(len(d.cursor))
		d.metrics.RecordReload(true)
	}
	span.SetAttributes(telemetry.BackendCount(len(d.cursor)))
	logger.Info("Backend directory reloaded",
		"configured", len(entries), "healthy", healthyCount, "connected", len(d.cursor))
	return nil
}

// probeAll probes every entry concurrently and returns per-index health.
// Called with the directory mutex held; the probes themselves only touch
// their own slot.
func (d *Directory) probeAll(entries []ServerEntry) []bool {
	healthy := make([]bool, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			healthy[i] = probeBackend(addr, d.probeTimeout)
		}(i, entry.Addr())
	}
	wg.Wait()

	return healthy
}

// ScheduleReload requests an asynchronous reload. Requests arriving while a
// reload runs collapse into exactly one trailing reload.
func (d *Directory) ScheduleReload() {
	select {
	case d.reloads <- struct{}{}:
	default:
	}
}

// Run consumes scheduled reloads until stop is closed. Call in a goroutine.
func (d *Directory) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-d.reloads:
			if err := d.Reload(); err != nil {
				logger.Warn("Backend reload failed, prior backend set retained", "file", d.path, "error", err)
			}
		}
	}
}

// Select returns the next backend in round-robin order.
//
// Walks the cursor at most one full turn, skipping entries whose connection
// was closed since the last rebuild, and returns ErrNoBackend when the
// healthy-and-connected set is empty.
func (d *Directory) Select() (*BackendConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for range d.cursor {
		idx := d.cursor[d.cursorPos]
		d.cursorPos = (d.cursorPos + 1) % len(d.cursor)
		if bc, ok := d.conns[idx]; ok {
			return bc, nil
		}
	}
	return nil, ErrNoBackend
}

// closeBackendConn demotes a failed backend connection: drops it from the
// connection map and the cursor, then closes the socket.
//
// Identity is the *BackendConn, not the index: if a reload already replaced
// the connection at this index, the bookkeeping is left alone and only the
// stale socket is closed (again, harmlessly).
func (d *Directory) closeBackendConn(bc *BackendConn) {
	d.mu.Lock()
	if cur, ok := d.conns[bc.index]; ok && cur == bc {
		delete(d.conns, bc.index)
		d.dropFromCursor(bc.index)
		if d.metrics != nil {
			d.metrics.SetBackendCount(len(d.cursor))
		}
		logger.Warn("Backend demoted until next reload", "index", bc.index, "addr", bc.addr)
	}
	d.mu.Unlock()

	bc.close()
}

// dropFromCursor removes an index from the cursor, keeping the rotation
// position within bounds. Called with the directory mutex held.
func (d *Directory) dropFromCursor(index int) {
	for i, idx := range d.cursor {
		if idx == index {
			d.cursor = append(d.cursor[:i], d.cursor[i+1:]...)
			break
		}
	}
	if len(d.cursor) > 0 {
		d.cursorPos %= len(d.cursor)
	} else {
		d.cursorPos = 0
	}
}

// readLoop demultiplexes envelopes arriving from one backend until the
// connection fails or is closed.
//
// Payloads addressed to unknown client ids are dropped and logged; they
// never terminate the backend connection. Framing or I/O errors demote the
// backend and exit the loop.
func (d *Directory) readLoop(bc *BackendConn) {
	defer d.readers.Done()

	for {
		clientID, payload, err := d.framer.Decode(bc.conn)
		if err != nil {
			switch {
			case bc.isClosed():
				logger.Debug("Backend reader exiting", "addr", bc.addr)
			case errors.Is(err, io.EOF):
				logger.Info("Backend closed connection", "addr", bc.addr)
			default:
				logger.Warn("Backend read failed", "addr", bc.addr, "error", err)
			}
			d.closeBackendConn(bc)
			return
		}

		if d.deliver(clientID, payload) {
			if d.metrics != nil {
				d.metrics.RecordPayloadDelivered(len(payload))
			}
			continue
		}

		logger.Debug("Dropping payload for unknown client",
			"client_id", clientID, "backend", bc.addr, "bytes", len(payload))
		if d.metrics != nil {
			d.metrics.RecordPayloadDropped()
		}
	}
}

// BackendCount returns the size of the healthy-and-connected set.
func (d *Directory) BackendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.cursor)
}

// Close shuts every backend connection and waits for the reader goroutines
// to exit. The directory refuses reloads afterwards.
func (d *Directory) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	conns := make([]*BackendConn, 0, len(d.conns))
	for _, bc := range d.conns {
		conns = append(conns, bc)
	}
	d.conns = make(map[int]*BackendConn)
	d.cursor = nil
	d.cursorPos = 0
	if d.metrics != nil {
		d.metrics.SetBackendCount(0)
	}
	d.mu.Unlock()

	for _, bc := range conns {
		bc.close()
	}
	d.readers.Wait()
}
