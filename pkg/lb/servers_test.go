package lb

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeServersFile writes a discovery file into a fresh temp dir and returns
// its path.
func writeServersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
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

func TestLoadServers(t *testing.T) {
	t.Run("parses entries in file order", func(t *testing.T) {
		path := writeServersFile(t, `[
			{"host": "127.0.0.1", "port": 9000},
			{"host": "10.0.0.2", "port": 9001}
		]`)

		entries, err := loadServers(path)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "127.0.0.1:9000", entries[0].Addr())
		assert.Equal(t, "10.0.0.2:9001", entries[1].Addr())
	})

	t.Run("empty array yields no entries", func(t *testing.T) {
		path := writeServersFile(t, `[]`)

		entries, err := loadServers(path)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("deduplicates by address keeping first occurrence", func(t *testing.T) {
		path := writeServersFile(t, `[
			{"host": "127.0.0.1", "port": 9000},
			{"host": "10.0.0.2", "port": 9001},
			{"host": "127.0.0.1", "port": 9000}
		]`)

		entries, err := loadServers(path)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "127.0.0.1:9000", entries[0].Addr())
		assert.Equal(t, "10.0.0.2:9001", entries[1].Addr())
	})

	t.Run("same host different ports are distinct", func(t *testing.T) {
		path := writeServersFile(t, `[
			{"host": "127.0.0.1", "port": 9000},
			{"host": "127.0.0.1", "port": 9001}
		]`)

		entries, err := loadServers(path)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		path := writeServersFile(t, `{"host": "oops"`)

		_, err := loadServers(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse backend file")
	})

	t.Run("rejects non-array document", func(t *testing.T) {
		path := writeServersFile(t, `{"host": "127.0.0.1", "port": 9000}`)

		_, err := loadServers(path)
		require.Error(t, err)
	})

	t.Run("rejects empty host", func(t *testing.T) {
		path := writeServersFile(t, `[{"host": "", "port": 9000}]`)

		_, err := loadServers(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty host")
	})

	t.Run("rejects out of range port", func(t *testing.T) {
		for _, port := range []string{"0", "-1", "65536"} {
			path := writeServersFile(t, `[{"host": "127.0.0.1", "port": `+port+`}]`)

			_, err := loadServers(path)
			require.Error(t, err, "port %s should be rejected", port)
			assert.Contains(t, err.Error(), "invalid port")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := loadServers(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})
}

func TestEnsureServersFile(t *testing.T) {
	t.Run("creates an empty list with parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "servers.json")

		require.NoError(t, ensureServersFile(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))

		entries, err := loadServers(path)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("leaves an existing file untouched", func(t *testing.T) {
		path := writeServersFile(t, `[{"host": "127.0.0.1", "port": 9000}]`)

		require.NoError(t, ensureServersFile(path))

		entries, err := loadServers(path)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestProbeBackend(t *testing.T) {
	t.Run("reachable listener is healthy", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer func() { _ = ln.Close() }()

		assert.True(t, probeBackend(ln.Addr().String(), time.Second))
	})

	t.Run("refused connection is unhealthy", func(t *testing.T) {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(findFreePort(t)))
		assert.False(t, probeBackend(addr, 500*time.Millisecond))
	})
}
