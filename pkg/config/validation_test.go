package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmux/classmux/internal/bytesize"
	"github.com/classmux/classmux/pkg/store"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string // empty means the config must validate
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.Logging.Level = "INVALID" },
			errContains: "oneof",
		},
		{
			name:        "unknown log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "oneof",
		},
		{
			name:        "lb port out of range",
			mutate:      func(c *Config) { c.LB.Port = 70000 },
			errContains: "max",
		},
		{
			name:        "negative server port",
			mutate:      func(c *Config) { c.Server.Port = -1 },
			errContains: "min",
		},
		{
			name:        "missing servers file",
			mutate:      func(c *Config) { c.LB.ServersFile = "" },
			errContains: "serversfile",
		},
		{
			name:        "frame cap below envelope overhead",
			mutate:      func(c *Config) { c.LB.MaxFrameSize = bytesize.ByteSize(64) },
			errContains: "max_frame_size",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Database.Type = store.DatabaseTypePostgres
			},
			errContains: "database",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			errContains: "telemetry",
		},
		{
			name: "sample rate above one",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 1.5
			},
			errContains: "lte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tt.errContains)
		})
	}
}

func TestValidateAcceptsBothLevelCases(t *testing.T) {
	// Validation accepts either case; normalization is ApplyDefaults' job
	// and must not happen here.
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		assert.NoError(t, Validate(cfg), "level %q", level)
		assert.Equal(t, level, cfg.Logging.Level)
	}
}
