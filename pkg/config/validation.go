package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/classmux/classmux/internal/bytesize"
)

// minFrameSize is the smallest usable envelope cap. An envelope carries a
// one-byte client id length, up to 255 bytes of client id, and the payload,
// so anything below 1Ki cannot fit a meaningful request.
const minFrameSize = bytesize.ByteSize(1024)

// structValidator validates struct tags (required, oneof, min, max, ...).
var structValidator = validator.New()

// Validate checks the configuration for errors.
//
// Struct tags cover field-level rules; cross-field rules that tags cannot
// express are checked explicitly below. Validation never mutates the
// config, normalization happens in ApplyDefaults.
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Database section has its own validation (per-backend requirements)
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	// Frame caps below the envelope overhead make every request undeliverable
	if cfg.LB.MaxFrameSize < minFrameSize {
		return fmt.Errorf("lb max_frame_size %s is below the %s minimum", cfg.LB.MaxFrameSize, minFrameSize)
	}
	if cfg.Server.MaxFrameSize < minFrameSize {
		return fmt.Errorf("server max_frame_size %s is below the %s minimum", cfg.Server.MaxFrameSize, minFrameSize)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling endpoint is required when profiling is enabled")
	}

	return nil
}
