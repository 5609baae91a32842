package config

import (
	"strings"
	"time"

	"github.com/classmux/classmux/internal/bytesize"
)

// ApplyDefaults fills every unset field with its default so the rest of
// the program never has to check for zero values. Explicit settings are
// preserved; the log level is additionally normalized to uppercase.
func ApplyDefaults(cfg *Config) {
	lb := &cfg.LB
	setDefault(&lb.Host, "127.0.0.1")
	setDefault(&lb.Port, 8000)
	setDefault(&lb.ServersFile, "servers.json")
	setDefault(&lb.HealthCheckTimeout, time.Second)
	setDefault(&lb.MaxFrameSize, 10*bytesize.MiB)
	setDefault(&lb.ClientChunkSize, 4*bytesize.KiB)
	// MaxConnections stays 0 (unlimited)

	srv := &cfg.Server
	setDefault(&srv.Host, "127.0.0.1")
	setDefault(&srv.Port, 9000)
	setDefault(&srv.MaxFrameSize, 10*bytesize.MiB)

	cfg.Database.ApplyDefaults()

	lg := &cfg.Logging
	setDefault(&lg.Level, "INFO")
	lg.Level = strings.ToUpper(lg.Level)
	setDefault(&lg.Format, "text")
	setDefault(&lg.Output, "stdout")

	// The standalone metrics port only matters when metrics are on; an
	// unset port with metrics disabled should stay zero so `config show`
	// does not suggest a listener that will never exist.
	if cfg.Metrics.Enabled {
		setDefault(&cfg.Metrics.Port, 9090)
	}

	ops := &cfg.Ops
	setDefault(&ops.Host, "127.0.0.1")
	setDefault(&ops.Port, 8080)
	setDefault(&ops.ReadTimeout, 10*time.Second)
	setDefault(&ops.WriteTimeout, 10*time.Second)
	setDefault(&ops.IdleTimeout, 60*time.Second)

	tel := &cfg.Telemetry
	setDefault(&tel.Endpoint, "localhost:4317")
	setDefault(&tel.SampleRate, 1.0)
	setDefault(&tel.Profiling.Endpoint, "http://localhost:4040")
	if len(tel.Profiling.ProfileTypes) == 0 {
		tel.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects", "alloc_space",
			"inuse_objects", "inuse_space",
			"goroutines",
		}
	}

	setDefault(&cfg.ShutdownTimeout, 30*time.Second)
}

// setDefault assigns value when the field still holds its zero value.
func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// GetDefaultConfig returns the configuration a process runs with when no
// file, flags, or environment values are present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
