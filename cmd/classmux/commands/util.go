package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/internal/telemetry"
	"github.com/classmux/classmux/pkg/config"
	"github.com/classmux/classmux/pkg/ops"

	// Register the prometheus collectors for both tiers.
	_ "github.com/classmux/classmux/pkg/metrics/prometheus"
)

// initLogger configures the process-wide structured logger.
func initLogger(cfg *config.Config) error {
	err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

// initObservability starts OpenTelemetry tracing and Pyroscope profiling
// from configuration and logs the effective state of both. The returned
// shutdown function flushes them in reverse order and is safe to defer.
func initObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "classmux",
		ServiceVersion: buildVersion,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "classmux",
		ServiceVersion: buildVersion,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		if terr := telemetryShutdown(ctx); terr != nil {
			logger.Error("telemetry shutdown error", "error", terr)
		}
		return nil, fmt.Errorf("initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// awaitShutdown blocks until a signal arrives or one of the components
// exits, cancels the context, and waits for everything to stop. name
// appears in the shutdown logs; opsDone may be nil.
func awaitShutdown(cancel context.CancelFunc, name string, done, opsDone chan error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	logger.Info(name + " is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case sig := <-sigs:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
		runErr = <-done

	case runErr = <-done:
		cancel()

	case opsErr := <-opsDone:
		cancel()
		if err := <-done; err != nil {
			logger.Error(name+" shutdown error", "error", err)
		}
		if opsErr != nil {
			logger.Error("Ops endpoint error", "error", opsErr)
		}
		return opsErr
	}

	if opsDone != nil {
		<-opsDone
	}
	if runErr != nil {
		logger.Error(name+" exited with error", "error", runErr)
		return runErr
	}
	logger.Info(name + " stopped")
	return nil
}

// startOpsEndpoint starts the ops HTTP server when enabled, or a
// standalone metrics listener when only metrics are. Returns nil when
// neither runs; otherwise the channel yields the endpoint's exit error.
func startOpsEndpoint(ctx context.Context, cfg *config.Config, component string, ready ops.ReadyCheck) chan error {
	var server *ops.Server
	switch {
	case cfg.Ops.Enabled:
		server = ops.NewServer(cfg.Ops, component, ready)
		logger.Info("Ops endpoint enabled", "address", server.Addr())
	case cfg.Metrics.Enabled:
		server = ops.NewMetricsServer(cfg.Metrics)
		logger.Info("Standalone metrics endpoint enabled", "address", server.Addr())
	default:
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()
	return done
}
