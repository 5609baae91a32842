package lb

import (
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmux/classmux/pkg/wire"
)

// fakeBackend is a minimal application server for tests: it accepts
// connections, decodes envelopes, and echoes each payload back addressed to
// the same client id. Health probes show up as short-lived connections that
// die on EOF without ever carrying a frame.
type fakeBackend struct {
	t        *testing.T
	listener net.Listener
	framer   wire.Framer

	mu    sync.Mutex
	conns []net.Conn
	seen  map[string]int

	active atomic.Int32
	wg     sync.WaitGroup
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeBackend{
		t:        t,
		listener: ln,
		framer:   wire.NewFramer(wire.DefaultMaxFrameSize),
		seen:     make(map[string]int),
	}
	f.wg.Add(1)
	go f.acceptLoop()
	t.Cleanup(f.close)
	return f
}

func (f *fakeBackend) acceptLoop() {
	defer f.wg.Done()
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		f.active.Add(1)
		f.wg.Add(1)
		go f.echoLoop(conn)
	}
}

func (f *fakeBackend) echoLoop(conn net.Conn) {
	defer f.wg.Done()
	defer f.active.Add(-1)

	for {
		clientID, payload, err := f.framer.Decode(conn)
		if err != nil {
			return
		}

		f.mu.Lock()
		f.seen[clientID]++
		f.mu.Unlock()

		frame, err := f.framer.Encode(clientID, payload)
		if err != nil {
			return
		}
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (f *fakeBackend) addr() string {
	return f.listener.Addr().String()
}

func (f *fakeBackend) entry() ServerEntry {
	return ServerEntry{Host: "127.0.0.1", Port: f.listener.Addr().(*net.TCPAddr).Port}
}

// push writes an envelope addressed to clientID on the most recently
// accepted connection, simulating a server-initiated payload.
func (f *fakeBackend) push(clientID string, payload []byte) {
	f.t.Helper()

	frame, err := f.framer.Encode(clientID, payload)
	require.NoError(f.t, err)

	f.mu.Lock()
	require.NotEmpty(f.t, f.conns, "no backend connection to push on")
	conn := f.conns[len(f.conns)-1]
	f.mu.Unlock()

	_, err = conn.Write(frame)
	require.NoError(f.t, err)
}

// distinctClients returns the client ids observed so far.
func (f *fakeBackend) distinctClients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.seen))
	for id := range f.seen {
		ids = append(ids, id)
	}
	return ids
}

// closeConns closes every accepted connection, keeping the listener alive.
func (f *fakeBackend) closeConns() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (f *fakeBackend) close() {
	_ = f.listener.Close()
	f.closeConns()
	f.wg.Wait()
}

// recordedDelivery is one payload handed to the delivery callback.
type recordedDelivery struct {
	clientID string
	payload  []byte
}

// newRecordingDeliver returns a DeliverFunc that accepts payloads for the
// given client ids and records them, refusing everything else.
func newRecordingDeliver(known ...string) (DeliverFunc, chan recordedDelivery) {
	knownSet := make(map[string]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}

	deliveries := make(chan recordedDelivery, 16)
	deliver := func(clientID string, payload []byte) bool {
		if !knownSet[clientID] {
			return false
		}
		deliveries <- recordedDelivery{clientID: clientID, payload: payload}
		return true
	}
	return deliver, deliveries
}

func newTestDirectory(t *testing.T, path string, deliver DeliverFunc) *Directory {
	t.Helper()
	if deliver == nil {
		deliver = func(string, []byte) bool { return false }
	}

	d := NewDirectory(DirectoryConfig{
		Path:         path,
		ProbeTimeout: 500 * time.Millisecond,
		Framer:       wire.NewFramer(wire.DefaultMaxFrameSize),
		Deliver:      deliver,
	})
	t.Cleanup(d.Close)
	return d
}

func awaitDelivery(t *testing.T, deliveries chan recordedDelivery) recordedDelivery {
	t.Helper()
	select {
	case got := <-deliveries:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload delivery")
		return recordedDelivery{}
	}
}

func TestDirectoryReloadConnectsHealthyBackends(t *testing.T) {
	b0 := newFakeBackend(t)
	b1 := newFakeBackend(t)
	path := writeServersFile(t, `[
		{"host": "127.0.0.1", "port": `+strconv.Itoa(b0.entry().Port)+`},
		{"host": "127.0.0.1", "port": `+strconv.Itoa(b1.entry().Port)+`}
	]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())

	assert.Equal(t, 2, d.BackendCount())
}

func TestDirectorySelectRoundRobin(t *testing.T) {
	backends := []*fakeBackend{newFakeBackend(t), newFakeBackend(t), newFakeBackend(t)}
	path := writeServersFile(t, `[
		{"host": "127.0.0.1", "port": `+strconv.Itoa(backends[0].entry().Port)+`},
		{"host": "127.0.0.1", "port": `+strconv.Itoa(backends[1].entry().Port)+`},
		{"host": "127.0.0.1", "port": `+strconv.Itoa(backends[2].entry().Port)+`}
	]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	require.Equal(t, 3, d.BackendCount())

	// Two full turns in ascending file order.
	want := []string{
		backends[0].addr(), backends[1].addr(), backends[2].addr(),
		backends[0].addr(), backends[1].addr(), backends[2].addr(),
	}
	for i, expected := range want {
		bc, err := d.Select()
		require.NoError(t, err)
		assert.Equal(t, expected, bc.Addr(), "selection %d", i)
	}
}

func TestDirectoryReloadSkipsUnreachableBackend(t *testing.T) {
	live := newFakeBackend(t)
	deadPort := findFreePort(t)
	path := writeServersFile(t, `[
		{"host": "127.0.0.1", "port": `+strconv.Itoa(deadPort)+`},
		{"host": "127.0.0.1", "port": `+strconv.Itoa(live.entry().Port)+`}
	]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())

	require.Equal(t, 1, d.BackendCount())
	for i := 0; i < 3; i++ {
		bc, err := d.Select()
		require.NoError(t, err)
		assert.Equal(t, live.addr(), bc.Addr())
	}
}

func TestDirectoryReloadUnchangedFileKeepsConnections(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())

	before, err := d.Select()
	require.NoError(t, err)

	require.NoError(t, d.Reload())

	after, err := d.Select()
	require.NoError(t, err)
	assert.Same(t, before, after, "reload with an unchanged file should keep the connection")
}

func TestDirectoryReloadInvalidFileRetainsPriorSet(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	before, err := d.Select()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`this is not json`), 0o644))

	require.Error(t, d.Reload())
	assert.Equal(t, 1, d.BackendCount(), "prior backend set should stay in effect")

	after, err := d.Select()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestDirectorySelectNoBackend(t *testing.T) {
	path := writeServersFile(t, `[]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())

	_, err := d.Select()
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestDirectoryDemotesFailedBackend(t *testing.T) {
	b0 := newFakeBackend(t)
	b1 := newFakeBackend(t)
	path := writeServersFile(t, `[
		{"host": "127.0.0.1", "port": `+strconv.Itoa(b0.entry().Port)+`},
		{"host": "127.0.0.1", "port": `+strconv.Itoa(b1.entry().Port)+`}
	]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	require.Equal(t, 2, d.BackendCount())

	victim, err := d.Select()
	require.NoError(t, err)
	d.closeBackendConn(victim)

	assert.Equal(t, 1, d.BackendCount())
	for i := 0; i < 4; i++ {
		bc, err := d.Select()
		require.NoError(t, err)
		assert.NotEqual(t, victim.Addr(), bc.Addr(), "demoted backend should not be selected")
	}

	// The next reload re-probes and re-promotes it.
	require.NoError(t, d.Reload())
	assert.Equal(t, 2, d.BackendCount())
}

func TestDirectoryDeliversBackendPayloads(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	deliver, deliveries := newRecordingDeliver("client-1")
	d := newTestDirectory(t, path, deliver)
	require.NoError(t, d.Reload())

	bc, err := d.Select()
	require.NoError(t, err)

	require.NoError(t, bc.writeEnvelope(d.framer, "client-1", []byte("hello")))

	got := awaitDelivery(t, deliveries)
	assert.Equal(t, "client-1", got.clientID)
	assert.Equal(t, "hello", string(got.payload))
}

func TestDirectoryDropsPayloadForUnknownClient(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	deliver, deliveries := newRecordingDeliver("client-1")
	d := newTestDirectory(t, path, deliver)
	require.NoError(t, d.Reload())

	bc, err := d.Select()
	require.NoError(t, err)

	// The echo comes back addressed to a client nobody knows. It must be
	// dropped without demoting the backend.
	require.NoError(t, bc.writeEnvelope(d.framer, "ghost", []byte("lost")))
	require.NoError(t, bc.writeEnvelope(d.framer, "client-1", []byte("still here")))

	got := awaitDelivery(t, deliveries)
	assert.Equal(t, "client-1", got.clientID)
	assert.Equal(t, "still here", string(got.payload))
	assert.Equal(t, 1, d.BackendCount(), "unknown client id must not demote the backend")
}

func TestDirectoryBackendEOFDemotes(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	require.Equal(t, 1, d.BackendCount())

	backend.closeConns()

	require.Eventually(t, func() bool {
		return d.BackendCount() == 0
	}, 2*time.Second, 20*time.Millisecond, "EOF from the backend should demote it")

	_, err := d.Select()
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestDirectoryScheduleReloadCoalesces(t *testing.T) {
	d := newTestDirectory(t, writeServersFile(t, `[]`), nil)

	// Nothing consumes the queue here, so repeated requests must collapse
	// into a single pending token.
	d.ScheduleReload()
	d.ScheduleReload()
	d.ScheduleReload()

	select {
	case <-d.reloads:
	default:
		t.Fatal("expected a pending reload")
	}
	select {
	case <-d.reloads:
		t.Fatal("expected reload requests to coalesce into one")
	default:
	}
}

func TestDirectoryRunConsumesScheduledReloads(t *testing.T) {
	path := writeServersFile(t, `[]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	require.Equal(t, 0, d.BackendCount())

	stop := make(chan struct{})
	defer close(stop)
	go d.Run(stop)

	backend := newFakeBackend(t)
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`), 0o644))
	d.ScheduleReload()

	require.Eventually(t, func() bool {
		return d.BackendCount() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDirectoryClose(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)

	d := newTestDirectory(t, path, nil)
	require.NoError(t, d.Reload())
	require.Equal(t, 1, d.BackendCount())

	d.Close()
	assert.Equal(t, 0, d.BackendCount())

	require.Eventually(t, func() bool {
		return backend.active.Load() == 0
	}, 2*time.Second, 20*time.Millisecond, "backend should observe the closed connection")

	// Close is idempotent and reloads after close are refused.
	d.Close()
	require.NoError(t, d.Reload())
	assert.Equal(t, 0, d.BackendCount())
}
