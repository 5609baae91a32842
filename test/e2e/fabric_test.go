//go:build e2e

// Package e2e exercises the full fabric path: a raw TCP client through the
// load balancer's envelope hop into an application server backed by the
// shared store. Everything runs in-process on loopback sockets; no external
// services are required.
package e2e

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmux/classmux/pkg/lb"
	"github.com/classmux/classmux/pkg/packet"
	"github.com/classmux/classmux/pkg/server"
	"github.com/classmux/classmux/pkg/store"
)

const testPassword = "correct-horse"

// fabric is one running instance of the full path: a client-facing load
// balancer, one application server, and the shared store.
type fabric struct {
	lbAddr      string
	serverAddr  string
	serversFile string
	engine      *lb.Engine
	store       *store.Store
}

// findFreePort returns a TCP port that was free at the time of the call.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "should find free port")
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// startFabric boots store, application server, and load balancer, with the
// server registered in the discovery file. Components stop on test cleanup
// in reverse start order.
func startFabric(t *testing.T) *fabric {
	t.Helper()
	return startFabricWithServers(t, true)
}

// startFabricDetached boots the same components but leaves the discovery
// file empty, so the load balancer starts with no backends.
func startFabricDetached(t *testing.T) *fabric {
	t.Helper()
	return startFabricWithServers(t, false)
}

func startFabricWithServers(t *testing.T, registered bool) *fabric {
	t.Helper()

	st, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		Path: ":memory:",
	})
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { _ = st.Close() })

	srv := server.New(server.Config{
		Host:            "127.0.0.1",
		Port:            findFreePort(t),
		ShutdownTimeout: 2 * time.Second,
	}, st, nil)

	srvCtx, srvCancel := context.WithCancel(context.Background())
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Serve(srvCtx) }()
	t.Cleanup(func() {
		srvCancel()
		select {
		case <-srvDone:
		case <-time.After(5 * time.Second):
			t.Error("application server did not shut down in time")
		}
	})
	serverAddr := srv.GetListenerAddr()

	serversFile := filepath.Join(t.TempDir(), "servers.json")
	content := "[]"
	if registered {
		content = serversJSON(t, serverAddr)
	}
	require.NoError(t, os.WriteFile(serversFile, []byte(content), 0o644))

	eng := lb.New(lb.Config{
		Host:               "127.0.0.1",
		Port:               findFreePort(t),
		ServersFile:        serversFile,
		HealthCheckTimeout: 500 * time.Millisecond,
		ShutdownTimeout:    2 * time.Second,
	}, nil)

	lbCtx, lbCancel := context.WithCancel(context.Background())
	lbDone := make(chan error, 1)
	go func() { lbDone <- eng.Serve(lbCtx) }()
	t.Cleanup(func() {
		lbCancel()
		select {
		case <-lbDone:
		case <-time.After(5 * time.Second):
			t.Error("load balancer did not shut down in time")
		}
	})

	return &fabric{
		lbAddr:      eng.GetListenerAddr(),
		serverAddr:  serverAddr,
		serversFile: serversFile,
		engine:      eng,
		store:       st,
	}
}

// serversJSON renders a one-entry discovery file for the given "host:port".
func serversJSON(t *testing.T, addr string) string {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return `[{"host": "` + host + `", "port": ` + strconv.Itoa(port) + `}]`
}

// client is one raw TCP connection into the load balancer. Requests go out
// as single writes; responses and pushes come back as a bare JSON stream.
type client struct {
	t    *testing.T
	conn net.Conn
	dec  *json.Decoder
}

func (f *fabric) dial(t *testing.T) *client {
	t.Helper()
	conn, err := net.Dial("tcp", f.lbAddr)
	require.NoError(t, err, "failed to dial load balancer")
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, dec: json.NewDecoder(conn)}
}

func (c *client) send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(c.t, err)
	_, err = c.conn.Write(data)
	require.NoError(c.t, err, "client write failed")
}

// decode reads the next JSON document from the client socket into v.
func (c *client) decode(v any) error {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return c.dec.Decode(v)
}

func (c *client) response() packet.Response {
	c.t.Helper()
	var resp packet.Response
	require.NoError(c.t, c.decode(&resp), "expected a response")
	return resp
}

// login creates the account when missing, dials a fresh client, and
// authenticates it.
func (f *fabric) login(t *testing.T, username, role string) *client {
	t.Helper()

	if _, err := f.store.GetUser(context.Background(), username); err != nil {
		_, err = f.store.CreateUser(context.Background(), username, testPassword, store.Role(role))
		require.NoError(t, err)
	}

	c := f.dial(t)
	c.send(packet.Login{
		Type:     packet.TypeLogin,
		Username: username,
		Password: testPassword,
		Role:     role,
	})
	resp := c.response()
	require.Equal(t, packet.StatusSuccess, resp.Status, "login failed: %s", resp.Message)
	return c
}

func TestFabricLoginRoundTrip(t *testing.T) {
	f := startFabric(t)

	_, err := f.store.CreateUser(context.Background(), "mr-chu", testPassword, store.RoleTeacher)
	require.NoError(t, err)

	c := f.dial(t)
	c.send(packet.Login{
		Type:     packet.TypeLogin,
		Username: "mr-chu",
		Password: testPassword,
		Role:     "teacher",
	})

	resp := c.response()
	assert.Equal(t, packet.StatusSuccess, resp.Status)
	assert.Equal(t, "Login successful", resp.Message)

	// Login must have registered the minted client id in the directory.
	clientID, err := f.store.LookupClientID(context.Background(), "mr-chu")
	require.NoError(t, err)
	assert.NotEmpty(t, clientID)
}

func TestFabricRejectsBadCredentials(t *testing.T) {
	f := startFabric(t)

	_, err := f.store.CreateUser(context.Background(), "mr-chu", testPassword, store.RoleTeacher)
	require.NoError(t, err)

	c := f.dial(t)
	c.send(packet.Login{
		Type:     packet.TypeLogin,
		Username: "mr-chu",
		Password: "wrong-password",
		Role:     "teacher",
	})

	resp := c.response()
	assert.Equal(t, packet.StatusError, resp.Status)

	_, err = f.store.LookupClientID(context.Background(), "mr-chu")
	assert.ErrorIs(t, err, store.ErrClientNotFound, "failed login must not register a directory entry")
}

func TestFabricNotifyReachesStudent(t *testing.T) {
	f := startFabric(t)

	teacher := f.login(t, "mr-chu", "teacher")
	student := f.login(t, "anna", "student")

	teacher.send(packet.CreateRoom{
		Type:    packet.TypeCreateRoom,
		RoomID:  "net-101",
		Teacher: "mr-chu",
	})
	resp := teacher.response()
	require.Equal(t, packet.StatusSuccess, resp.Status, resp.Message)

	student.send(packet.JoinRoom{
		Type:        packet.TypeJoinRoom,
		RoomID:      "net-101",
		Username:    "anna",
		MSSV:        "20210001",
		StudentName: "Anna Tran",
	})
	resp = student.response()
	require.Equal(t, packet.StatusSuccess, resp.Status, resp.Message)

	teacher.send(packet.Notify{
		Type:    packet.TypeNotify,
		RoomID:  "net-101",
		Message: "Quiz in 5 minutes",
	})

	// The student socket receives the push with the wrapper stripped.
	var note packet.NotificationPush
	require.NoError(t, student.decode(&note))
	assert.Equal(t, packet.PushNotification, note.Type)
	assert.Equal(t, "net-101", note.RoomID)
	assert.Equal(t, "Quiz in 5 minutes", note.Message)
	assert.Equal(t, "mr-chu", note.SenderUsername)

	resp = teacher.response()
	assert.Equal(t, packet.StatusSuccess, resp.Status)
	assert.Contains(t, resp.Message, "1/1 online recipients")
}

func TestFabricRefreshListsParticipants(t *testing.T) {
	f := startFabric(t)

	teacher := f.login(t, "mr-chu", "teacher")
	student := f.login(t, "anna", "student")

	teacher.send(packet.CreateRoom{
		Type:    packet.TypeCreateRoom,
		RoomID:  "net-101",
		Teacher: "mr-chu",
	})
	require.Equal(t, packet.StatusSuccess, teacher.response().Status)

	student.send(packet.JoinRoom{
		Type:        packet.TypeJoinRoom,
		RoomID:      "net-101",
		Username:    "anna",
		MSSV:        "20210001",
		StudentName: "Anna Tran",
	})
	require.Equal(t, packet.StatusSuccess, student.response().Status)

	teacher.send(packet.Refresh{
		Type:   packet.TypeRefresh,
		RoomID: "net-101",
	})

	var refresh packet.RefreshResponse
	require.NoError(t, teacher.decode(&refresh))
	assert.Equal(t, packet.StatusSuccess, refresh.Status)
	require.Len(t, refresh.Participants, 1)
	assert.Equal(t, "anna", refresh.Participants[0].Username)
	assert.Equal(t, "Anna Tran", refresh.Participants[0].StudentName)
	assert.Equal(t, "20210001", refresh.Participants[0].MSSV)
}

func TestFabricHotReloadAddsBackend(t *testing.T) {
	f := startFabricDetached(t)

	_, err := f.store.CreateUser(context.Background(), "mr-chu", testPassword, store.RoleTeacher)
	require.NoError(t, err)

	// With no backends the load balancer drops the client on its first
	// chunk.
	dropped := f.dial(t)
	dropped.send(packet.Login{
		Type:     packet.TypeLogin,
		Username: "mr-chu",
		Password: testPassword,
		Role:     "teacher",
	})
	var resp packet.Response
	require.Error(t, dropped.decode(&resp), "client should be dropped without a backend")

	// Registering the server in the discovery file promotes it without a
	// restart.
	require.NoError(t, os.WriteFile(f.serversFile,
		[]byte(serversJSON(t, f.serverAddr)), 0o644))
	require.Eventually(t, func() bool {
		return f.engine.Directory().BackendCount() == 1
	}, 5*time.Second, 50*time.Millisecond, "reload should promote the backend")

	c := f.dial(t)
	c.send(packet.Login{
		Type:     packet.TypeLogin,
		Username: "mr-chu",
		Password: testPassword,
		Role:     "teacher",
	})
	assert.Equal(t, packet.StatusSuccess, c.response().Status)
}

func TestFabricLBShutdownUnregistersClient(t *testing.T) {
	f := startFabric(t)

	f.login(t, "mr-chu", "teacher")

	clientID, err := f.store.LookupClientID(context.Background(), "mr-chu")
	require.NoError(t, err)
	require.NotEmpty(t, clientID)

	// Stopping the load balancer closes its backend connections; the
	// server's disconnect cleanup evicts the directory entry.
	require.NoError(t, f.engine.Stop())

	require.Eventually(t, func() bool {
		_, err := f.store.LookupClientID(context.Background(), "mr-chu")
		return err != nil
	}, 5*time.Second, 50*time.Millisecond, "directory entry should be evicted after disconnect")
}
