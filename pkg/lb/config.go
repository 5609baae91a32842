package lb

import (
	"fmt"
	"time"

	"github.com/classmux/classmux/pkg/wire"
)

// Config holds configuration parameters for the load balancer engine.
//
// Default values (applied by New if zero):
//   - Port: 8000
//   - ServersFile: "servers.json"
//   - HealthCheckTimeout: 1s
//   - MaxFrameSize: 10 MiB
//   - ClientChunkSize: 4096
//   - MaxConnections: 0 (unlimited)
//   - ShutdownTimeout: 30s
type Config struct {
	// Host is the address client connections are accepted on.
	// Empty string binds to all interfaces.
	Host string

	// Port is the client-facing TCP port.
	Port int

	// ServersFile is the JSON file listing backend servers. The engine
	// creates it empty if missing and hot-reloads it on modification.
	ServersFile string

	// HealthCheckTimeout is the TCP connect deadline for backend probes.
	// Backend dials use twice this value.
	HealthCheckTimeout time.Duration

	// MaxFrameSize caps a single envelope on the backend hop.
	MaxFrameSize int

	// ClientChunkSize is the read buffer per client connection. Each read
	// of up to this many bytes becomes one envelope payload.
	ClientChunkSize int

	// MaxConnections limits concurrent client connections.
	// 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is the maximum duration to wait for connection
	// goroutines to exit during graceful shutdown.
	ShutdownTimeout time.Duration
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ServersFile == "" {
		c.ServersFile = "servers.json"
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = time.Second
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = wire.DefaultMaxFrameSize
	}
	if c.ClientChunkSize == 0 {
		c.ClientChunkSize = 4096
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("invalid HealthCheckTimeout %v: must be > 0", c.HealthCheckTimeout)
	}
	if c.ClientChunkSize < 1 {
		return fmt.Errorf("invalid ClientChunkSize %d: must be >= 1", c.ClientChunkSize)
	}
	// A chunk plus the largest possible client id must still fit one frame.
	if c.ClientChunkSize+wire.MaxClientIDLen+1 > c.MaxFrameSize {
		return fmt.Errorf("ClientChunkSize %d does not fit a frame of MaxFrameSize %d",
			c.ClientChunkSize, c.MaxFrameSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
