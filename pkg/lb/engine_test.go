package lb

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEngine boots an engine on a free port and stops it on test cleanup.
func startEngine(t *testing.T, serversFile string) *Engine {
	t.Helper()

	e := New(Config{
		Host:               "127.0.0.1",
		Port:               findFreePort(t),
		ServersFile:        serversFile,
		HealthCheckTimeout: 500 * time.Millisecond,
		ShutdownTimeout:    2 * time.Second,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not shut down in time")
		}
	})

	addrCh := make(chan string, 1)
	go func() { addrCh <- e.GetListenerAddr() }()
	select {
	case addr := <-addrCh:
		require.NotEmpty(t, addr)
	case err := <-done:
		t.Fatalf("engine failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the listener")
	}
	return e
}

func dialClient(t *testing.T, e *Engine) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", e.GetListenerAddr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readExactly reads n bytes from the client socket within a deadline.
func readExactly(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return buf
}

func TestEngineEchoRoundTrip(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)
	e := startEngine(t, path)

	client := dialClient(t, e)

	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(readExactly(t, client, 5)))

	// Same connection keeps working and keeps its identity.
	_, err = client.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(readExactly(t, client, 5)))

	ids := backend.distinctClients()
	require.Len(t, ids, 1, "one client should map to one client id")
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err, "client id should be a UUID")
}

func TestEngineClientsGetDistinctIDs(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)
	e := startEngine(t, path)

	first := dialClient(t, e)
	second := dialClient(t, e)

	_, err := first.Write([]byte("from first"))
	require.NoError(t, err)
	assert.Equal(t, "from first", string(readExactly(t, first, 10)))

	_, err = second.Write([]byte("from second"))
	require.NoError(t, err)
	assert.Equal(t, "from second", string(readExactly(t, second, 11)))

	assert.Len(t, backend.distinctClients(), 2)
}

func TestEngineNoBackendDropsClient(t *testing.T) {
	path := writeServersFile(t, `[]`)
	e := startEngine(t, path)

	client := dialClient(t, e)
	_, err := client.Write([]byte("anyone there?"))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := client.Read(make([]byte, 1))
	require.Error(t, err, "client should be disconnected when no backend exists")
	assert.Equal(t, 0, n)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "expected a closed connection, not a read timeout")
	}

	require.Eventually(t, func() bool {
		return e.GetActiveConnections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEnginePushToUnknownClientKeepsBackend(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)
	e := startEngine(t, path)

	client := dialClient(t, e)
	_, err := client.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping", string(readExactly(t, client, 4)))

	// A payload addressed to a client id nobody minted is dropped without
	// disturbing the backend connection or other clients.
	backend.push(uuid.New().String(), []byte("nobody home"))

	_, err = client.Write([]byte("still alive"))
	require.NoError(t, err)
	assert.Equal(t, "still alive", string(readExactly(t, client, 11)))
	assert.Equal(t, 1, e.Directory().BackendCount())
}

func TestEngineWatcherPicksUpNewBackend(t *testing.T) {
	path := writeServersFile(t, `[]`)
	e := startEngine(t, path)
	require.Equal(t, 0, e.Directory().BackendCount())

	backend := newFakeBackend(t)
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`), 0o644))

	require.Eventually(t, func() bool {
		return e.Directory().BackendCount() == 1
	}, 5*time.Second, 50*time.Millisecond, "file change should trigger a reload")

	client := dialClient(t, e)
	_, err := client.Write([]byte("late arrival"))
	require.NoError(t, err)
	assert.Equal(t, "late arrival", string(readExactly(t, client, 12)))
}

func TestEngineWatcherDropsRemovedBackend(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)
	e := startEngine(t, path)
	require.Equal(t, 1, e.Directory().BackendCount())

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	require.Eventually(t, func() bool {
		return e.Directory().BackendCount() == 0
	}, 5*time.Second, 50*time.Millisecond, "removal should drop the backend connection")

	require.Eventually(t, func() bool {
		return backend.active.Load() == 0
	}, 2*time.Second, 20*time.Millisecond, "backend should see its connection closed")
}

func TestEngineStop(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeServersFile(t,
		`[{"host": "127.0.0.1", "port": `+strconv.Itoa(backend.entry().Port)+`}]`)
	e := startEngine(t, path)

	client := dialClient(t, e)
	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(readExactly(t, client, 5)))

	require.NoError(t, e.Stop())
	assert.Equal(t, int32(0), e.GetActiveConnections())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = client.Read(make([]byte, 1))
	assert.Error(t, err, "client connections are closed on shutdown")

	// Stop is idempotent.
	require.NoError(t, e.Stop())
}

func TestNewPanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{ClientChunkSize: 1 << 21, MaxFrameSize: 1024}, nil)
	})
	assert.Panics(t, func() {
		New(Config{Port: -1}, nil)
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "servers.json", cfg.ServersFile)
	assert.Equal(t, time.Second, cfg.HealthCheckTimeout)
	assert.Equal(t, 10<<20, cfg.MaxFrameSize)
	assert.Equal(t, 4096, cfg.ClientChunkSize)
	assert.Equal(t, 0, cfg.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.validate())
}
