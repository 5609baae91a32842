// Package config loads and validates the classmux configuration from
// file, environment variables, and built-in defaults.
package config

import (
	"time"

	"github.com/classmux/classmux/internal/bytesize"
	"github.com/classmux/classmux/pkg/store"
)

// Config is the static configuration for both halves of the fabric.
//
// One file drives every process: `classmux lb` reads the LB section,
// `classmux server` reads the Server section, and both share the
// database, logging, and observability settings below. Values come
// from, in order of precedence: CLI flags, CLASSMUX_* environment
// variables, the configuration file, and built-in defaults.
type Config struct {
	// LB configures the load balancer front-end.
	LB LBConfig `mapstructure:"lb" yaml:"lb"`

	// Server configures the application server.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the shared store (SQLite or PostgreSQL).
	// Every server process pointed at the same database shares users,
	// rooms, and the client directory.
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Logging controls log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures Prometheus collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Ops configures the operational HTTP endpoint.
	Ops OpsConfig `mapstructure:"ops" yaml:"ops"`

	// Telemetry configures tracing and continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds graceful shutdown of either process.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LBConfig configures the load balancer front-end.
type LBConfig struct {
	// Host is the address client connections are accepted on.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the client-facing TCP port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// ServersFile is the JSON file listing backend servers.
	// The file is watched and hot-reloaded on modification.
	ServersFile string `mapstructure:"servers_file" validate:"required" yaml:"servers_file"`

	// HealthCheckTimeout is the TCP connect deadline for backend probes.
	// Backend dials use twice this value.
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout" validate:"required,gt=0" yaml:"health_check_timeout"`

	// MaxFrameSize caps a single envelope on the backend hop.
	// Supports human-readable sizes: "10Mi", "512Ki", 1048576.
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" yaml:"max_frame_size"`

	// ClientChunkSize is the read buffer per client connection.
	ClientChunkSize bytesize.ByteSize `mapstructure:"client_chunk_size" yaml:"client_chunk_size"`

	// MaxConnections limits concurrent client connections (0 = unlimited).
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`
}

// ServerConfig configures the application server.
type ServerConfig struct {
	// Host is the address LB connections are accepted on.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the LB-facing TCP port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// MaxFrameSize caps a single envelope read from a load balancer.
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" yaml:"max_frame_size"`

	// MaxConnections limits concurrent LB connections (0 = unlimited).
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level emitted: DEBUG, INFO, WARN, or ERROR
	// (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is either text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures Prometheus collection. Disabled means no
// metrics are registered at all. When the ops endpoint is enabled the
// scrape handler is served there; otherwise a standalone listener is
// started on Port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the standalone scrape port, used only when the ops
	// endpoint is disabled.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// OpsConfig configures the operational HTTP endpoint serving health
// checks and, when metrics are enabled, the Prometheus scrape handler.
// It is off by default.
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host"    yaml:"host"`
	Port    int    `mapstructure:"port"    validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Standard HTTP server timeouts.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"  yaml:"idle_timeout"`
}

// TelemetryConfig controls OpenTelemetry tracing. Spans are exported
// over OTLP gRPC to whatever collector Endpoint points at. Off by
// default.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS on the collector connection, which is the
	// usual arrangement for a local collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces to keep, 0.0 through 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling. Off by
// default.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes selects what to collect: cpu, alloc_objects,
	// alloc_space, inuse_objects, inuse_space, goroutines, mutex_count,
	// mutex_duration, block_count, block_duration.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}
