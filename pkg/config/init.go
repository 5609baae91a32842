package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented configuration file written by `classmux init`.
// Every value matches the built-in defaults, so the generated file loads
// identically to running with no config at all until the user edits it.
const configTemplate = `# Classmux Configuration File
#
# This file configures the classmux load balancer and application server.
# Any value can be overridden with a CLASSMUX_* environment variable, for
# example CLASSMUX_LOGGING_LEVEL=DEBUG or CLASSMUX_LB_PORT=8800.

# Load balancer front-end (classmux lb).
lb:
  # Address client connections are accepted on.
  host: 127.0.0.1
  port: 8000

  # JSON file listing backend application servers, for example:
  #   [{"host": "127.0.0.1", "port": 9000}]
  # The file is watched and hot-reloaded whenever it changes. It is
  # created with an empty list on startup if missing.
  servers_file: servers.json

  # TCP connect deadline for backend health probes.
  # Backend connections are dialed with twice this deadline.
  health_check_timeout: 1s

  # Largest envelope accepted on a backend connection.
  max_frame_size: 10Mi

  # Read buffer per client connection.
  client_chunk_size: 4Ki

  # Maximum concurrent client connections (0 = unlimited).
  max_connections: 0

# Application server (classmux server).
server:
  # Address load balancer connections are accepted on.
  host: 127.0.0.1
  port: 9000

  # Largest envelope accepted from a load balancer.
  max_frame_size: 10Mi

  # Maximum concurrent load balancer connections (0 = unlimited).
  max_connections: 0

# Shared database holding users, rooms, and the client directory.
# Every application server must point at the same database.
database:
  # Database type: sqlite (single node) or postgres (multiple servers).
  type: sqlite

  # SQLite database path (sqlite only).
  # Defaults to ~/.config/classmux/classmux.db when omitted.
  # path: /var/lib/classmux/classmux.db

  # PostgreSQL connection settings (postgres only).
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: classmux
  #   user: classmux
  #   password: ""
  #   ssl_mode: disable

# Logging configuration.
logging:
  # Log level: DEBUG, INFO, WARN, ERROR.
  level: INFO

  # Log format: text, json.
  format: text

  # Log output: stdout, stderr, or a file path.
  output: stdout

# Prometheus metrics (optional).
metrics:
  enabled: false

  # Standalone scrape port, used only when the ops endpoint is disabled.
  # With ops enabled, metrics are served on the ops endpoint instead.
  port: 9090

# Operational HTTP endpoint serving /health and /metrics (optional).
ops:
  enabled: false
  host: 127.0.0.1
  port: 8080

# OpenTelemetry tracing and Pyroscope profiling (optional).
telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

# Maximum time to wait for in-flight connections on shutdown.
shutdown_timeout: 30s
`

// InitConfig creates a configuration file at the default location.
//
// Returns the path of the created file. Fails if the file already exists,
// unless force is set.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath creates a configuration file at the given path.
//
// The file is written with a fully commented template so users can discover
// settings without consulting documentation. Fails if the file already
// exists, unless force is set.
func InitConfigToPath(path string, force bool) error {
	// Refuse to clobber an existing config unless forced
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	// Create parent directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Config may later hold database passwords, keep it owner-only
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
