package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/config"
	"github.com/classmux/classmux/pkg/lb"
	"github.com/classmux/classmux/pkg/metrics"
)

var (
	lbHost               string
	lbPort               int
	lbServersFile        string
	lbHealthCheckTimeout time.Duration
)

var lbCmd = &cobra.Command{
	Use:   "lb",
	Short: "Start the load balancer",
	Long: `Start the classmux load balancer.

The load balancer accepts client connections, wraps every read in an
envelope tagged with the connection's client ID, and forwards it to a
backend chosen round-robin from the servers file. The servers file is
watched and hot-reloaded on modification; unreachable backends are
skipped via a TCP health probe.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/classmux/config.yaml.

Examples:
  # Start with the configured listen address
  classmux lb

  # Override the listen port and servers file
  classmux lb --port 8000 --servers-file /etc/classmux/servers.json

  # Start with environment variable overrides
  CLASSMUX_LOGGING_LEVEL=DEBUG classmux lb`,
	RunE: runLB,
}

func init() {
	f := lbCmd.Flags()
	f.StringVar(&lbHost, "host", "", "Listen address (overrides config)")
	f.IntVar(&lbPort, "port", 0, "Listen port (overrides config)")
	f.StringVar(&lbServersFile, "servers-file", "", "Backend servers file (overrides config)")
	f.DurationVar(&lbHealthCheckTimeout, "health-check-timeout", 0, "Backend probe timeout, e.g. 500ms (overrides config)")
}

func runLB(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := applyLBOverrides(cmd, cfg); err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownObservability, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	fmt.Println("classmux load balancer")
	logger.Info("Logging configured", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	engine := lb.New(lb.Config{
		Host:               cfg.LB.Host,
		Port:               cfg.LB.Port,
		ServersFile:        cfg.LB.ServersFile,
		HealthCheckTimeout: cfg.LB.HealthCheckTimeout,
		MaxFrameSize:       cfg.LB.MaxFrameSize.Int(),
		ClientChunkSize:    cfg.LB.ClientChunkSize.Int(),
		MaxConnections:     cfg.LB.MaxConnections,
		ShutdownTimeout:    cfg.ShutdownTimeout,
	}, metrics.NewLBMetrics())

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Serve(ctx)
	}()

	opsDone := startOpsEndpoint(ctx, cfg, "lb", func(ctx context.Context) (map[string]any, error) {
		count := engine.Directory().BackendCount()
		if count == 0 {
			return nil, fmt.Errorf("no healthy backends")
		}
		return map[string]any{
			"backends":           count,
			"active_connections": engine.GetActiveConnections(),
		}, nil
	})

	return awaitShutdown(cancel, "Load balancer", engineDone, opsDone)
}

// applyLBOverrides layers flag values over the loaded configuration and
// re-validates the result.
func applyLBOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		cfg.LB.Host = lbHost
	}
	if cmd.Flags().Changed("port") {
		cfg.LB.Port = lbPort
	}
	if cmd.Flags().Changed("servers-file") {
		cfg.LB.ServersFile = lbServersFile
	}
	if cmd.Flags().Changed("health-check-timeout") {
		cfg.LB.HealthCheckTimeout = lbHealthCheckTimeout
	}
	return config.Validate(cfg)
}
