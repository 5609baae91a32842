package lb

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/classmux/classmux/internal/logger"
)

// ServerEntry is one backend address from the discovery file.
type ServerEntry struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the entry as a dialable "host:port" string.
func (e ServerEntry) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// loadServers reads and parses the backend discovery file.
//
// The file holds a JSON array of {host, port} objects. Duplicate addresses
// are dropped preserving the first occurrence, so indices into the returned
// slice are stable identifiers for a given file content. Any read, parse, or
// entry validation error leaves the caller's previous list in effect.
func loadServers(path string) ([]ServerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backend file: %w", err)
	}

	var raw []ServerEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse backend file: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	entries := make([]ServerEntry, 0, len(raw))
	for _, entry := range raw {
		if entry.Host == "" {
			return nil, fmt.Errorf("parse backend file: entry with empty host")
		}
		if entry.Port < 1 || entry.Port > 65535 {
			return nil, fmt.Errorf("parse backend file: entry %q has invalid port %d", entry.Host, entry.Port)
		}
		addr := entry.Addr()
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ensureServersFile creates the discovery file as an empty JSON array if it
// does not exist, so the watcher has a stable path to observe and operators
// can append entries without bootstrapping the file by hand.
func ensureServersFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat backend file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backend file directory: %w", err)
	}

	if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
		return fmt.Errorf("create backend file: %w", err)
	}

	logger.Info("Created empty backend file", "path", path)
	return nil
}

// probeBackend checks whether a backend accepts TCP connections.
//
// A plain connect with a bounded deadline, closed immediately. A successful
// connect counts as healthy even if the peer closes right after; any dial
// error (refused, timeout, reset, resolution failure) counts as unhealthy.
// No retries.
func probeBackend(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
