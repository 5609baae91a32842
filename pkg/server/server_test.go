package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmux/classmux/pkg/packet"
	"github.com/classmux/classmux/pkg/store"
	"github.com/classmux/classmux/pkg/wire"
)

// testFramer frames the fake load balancer side of the tests.
var testFramer = wire.NewFramer(wire.DefaultMaxFrameSize)

// findFreePort returns a TCP port that was free at the time of the call.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "should find free port")
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// startServer boots a server over an in-memory store and stops it on test
// cleanup.
func startServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	s, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		Path: ":memory:",
	})
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = s.Close() })

	srv := New(Config{
		Host:            "127.0.0.1",
		Port:            findFreePort(t),
		ShutdownTimeout: 2 * time.Second,
	}, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	addrCh := make(chan string, 1)
	go func() { addrCh <- srv.GetListenerAddr() }()
	select {
	case addr := <-addrCh:
		require.NotEmpty(t, addr)
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the listener")
	}
	return srv, s
}

// dialLB connects to the server the way a load balancer instance does.
func dialLB(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.GetListenerAddr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// sendFrame writes one envelope carrying the JSON encoding of req.
func sendFrame(t *testing.T, conn net.Conn, clientID string, req any) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	frame, err := testFramer.Encode(clientID, payload)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

// readFrame reads one envelope within a deadline.
func readFrame(t *testing.T, conn net.Conn) (string, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	clientID, payload, err := testFramer.Decode(conn)
	require.NoError(t, err)
	return clientID, payload
}

// seedUser creates an account directly in the store.
func seedUser(t *testing.T, s *store.Store, username string, role store.Role) {
	t.Helper()
	_, err := s.CreateUser(context.Background(), username, "correct-horse", role)
	require.NoError(t, err)
}

func loginRequest(username, role string) map[string]string {
	return map[string]string{
		"type":     "login",
		"username": username,
		"password": "correct-horse",
		"role":     role,
	}
}

func TestServerLoginRoundTrip(t *testing.T) {
	srv, s := startServer(t)
	seedUser(t, s, "anna", store.RoleStudent)

	conn := dialLB(t, srv)
	sendFrame(t, conn, "cid-anna", loginRequest("anna", "student"))

	clientID, payload := readFrame(t, conn)
	assert.Equal(t, "cid-anna", clientID, "response is addressed to the requesting client")

	var resp packet.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	assert.Equal(t, packet.StatusSuccess, resp.Status)
	assert.Equal(t, "Login successful", resp.Message)

	cid, err := s.LookupClientID(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, "cid-anna", cid)
}

func TestServerMultiplexesClientsOnOneConnection(t *testing.T) {
	srv, s := startServer(t)
	seedUser(t, s, "teach", store.RoleTeacher)
	seedUser(t, s, "anna", store.RoleStudent)

	conn := dialLB(t, srv)

	sendFrame(t, conn, "cid-t", loginRequest("teach", "teacher"))
	clientID, _ := readFrame(t, conn)
	assert.Equal(t, "cid-t", clientID)

	sendFrame(t, conn, "cid-anna", loginRequest("anna", "student"))
	clientID, _ = readFrame(t, conn)
	assert.Equal(t, "cid-anna", clientID)

	// A streaming request from the teacher produces two envelopes on this
	// connection: the push to the target first, then the response to the
	// requester. Dispatch is sequential, so the order is fixed.
	sendFrame(t, conn, "cid-t", map[string]string{
		"type": "streaming", "target_username": "anna",
	})

	clientID, payload := readFrame(t, conn)
	assert.Equal(t, "cid-anna", clientID, "push goes to the target client")
	var push packet.StartStreamingPush
	require.NoError(t, json.Unmarshal(payload, &push))
	assert.Equal(t, packet.PushStartStreaming, push.Type)
	assert.Equal(t, "cid-t", push.SenderClientID)

	clientID, payload = readFrame(t, conn)
	assert.Equal(t, "cid-t", clientID, "response goes to the requester")
	var resp packet.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	assert.Equal(t, packet.StatusSuccess, resp.Status)
}

func TestServerKeepsConnectionOnBadRequest(t *testing.T) {
	srv, _ := startServer(t)
	conn := dialLB(t, srv)

	frame, err := testFramer.Encode("cid-1", []byte("not json at all"))
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	clientID, payload := readFrame(t, conn)
	assert.Equal(t, "cid-1", clientID)
	var resp packet.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	assert.Equal(t, packet.StatusError, resp.Status)
	assert.Equal(t, "Invalid request format (not JSON)", resp.Message)

	// The connection survives a bad payload.
	sendFrame(t, conn, "cid-1", map[string]string{"type": "bogus"})
	clientID, payload = readFrame(t, conn)
	assert.Equal(t, "cid-1", clientID)
	require.NoError(t, json.Unmarshal(payload, &resp))
	assert.Equal(t, "Unknown request type: bogus", resp.Message)
}

func TestServerDropsConnectionOnFramingError(t *testing.T) {
	srv, _ := startServer(t)
	conn := dialLB(t, srv)

	// total_len of zero cannot describe a frame.
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 0)
	_, err := conn.Write(header[:])
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, readErr := conn.Read(make([]byte, 1))
	require.Error(t, readErr, "server should drop the connection")

	require.Eventually(t, func() bool {
		return srv.GetActiveConnections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServerDisconnectUnregistersLastClient(t *testing.T) {
	srv, s := startServer(t)
	seedUser(t, s, "anna", store.RoleStudent)

	conn := dialLB(t, srv)
	sendFrame(t, conn, "cid-anna", loginRequest("anna", "student"))
	_, payload := readFrame(t, conn)
	var resp packet.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	require.Equal(t, packet.StatusSuccess, resp.Status)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, err := s.LookupClientID(context.Background(), "anna")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond, "disconnect should evict the directory registration")

	_, err := s.LookupClientID(context.Background(), "anna")
	assert.ErrorIs(t, err, store.ErrClientNotFound)

	require.Eventually(t, func() bool {
		return srv.GetActiveConnections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServerStop(t *testing.T) {
	srv, s := startServer(t)
	seedUser(t, s, "anna", store.RoleStudent)

	conn := dialLB(t, srv)
	sendFrame(t, conn, "cid-anna", loginRequest("anna", "student"))
	_, payload := readFrame(t, conn)
	var resp packet.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	require.Equal(t, packet.StatusSuccess, resp.Status)

	require.NoError(t, srv.Stop())
	assert.Equal(t, int32(0), srv.GetActiveConnections())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err, "load balancer connections are closed on shutdown")

	// Shutdown still runs the directory cleanup for the last seen client.
	_, err = s.LookupClientID(context.Background(), "anna")
	assert.ErrorIs(t, err, store.ErrClientNotFound)

	// Stop is idempotent.
	require.NoError(t, srv.Stop())
}

func TestNewPanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{Port: -1}, nil, nil)
	})
	assert.Panics(t, func() {
		New(Config{MaxFrameSize: 16}, nil, nil)
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, wire.DefaultMaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, 0, cfg.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.validate())
}
