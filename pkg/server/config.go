package server

import (
	"fmt"
	"time"

	"github.com/classmux/classmux/pkg/wire"
)

// Config holds configuration parameters for the application server.
//
// Default values (applied by New if zero):
//   - Port: 9000
//   - MaxFrameSize: 10 MiB
//   - MaxConnections: 0 (unlimited)
//   - ShutdownTimeout: 30s
type Config struct {
	// Host is the address load balancer connections are accepted on.
	// Empty string binds to all interfaces.
	Host string

	// Port is the TCP port the load balancer dials.
	Port int

	// MaxFrameSize caps a single envelope in either direction.
	MaxFrameSize int

	// MaxConnections limits concurrent load balancer connections.
	// 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is the maximum duration to wait for connection
	// goroutines to exit during graceful shutdown.
	ShutdownTimeout time.Duration
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = wire.DefaultMaxFrameSize
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
	// An envelope must hold the largest client id plus a JSON response.
	if c.MaxFrameSize < 1024 {
		return fmt.Errorf("invalid MaxFrameSize %d: must be at least 1024", c.MaxFrameSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
