package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/config"
	"github.com/classmux/classmux/pkg/metrics"
	"github.com/classmux/classmux/pkg/server"
	"github.com/classmux/classmux/pkg/store"
)

var (
	serverHost string
	serverPort int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start an application server",
	Long: `Start a classmux application server.

The server accepts load balancer connections, unwraps each envelope, and
dispatches the JSON request on behalf of the tagged client: login and
rooms against the shared database, pushes (notifications, streaming,
screen frames, app lists) back through the same connection.

Run several servers against the same database and list them all in the
load balancer's servers file to scale out.

Examples:
  # Start with the configured listen address
  classmux server

  # Override the listen port (e.g. a second server on one host)
  classmux server --port 9001

  # Start with environment variable overrides
  CLASSMUX_DATABASE_TYPE=postgres classmux server`,
	RunE: runServer,
}

func init() {
	f := serverCmd.Flags()
	f.StringVar(&serverHost, "host", "", "Listen address (overrides config)")
	f.IntVar(&serverPort, "port", 0, "Listen port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if err := config.Validate(cfg); err != nil {
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

	fmt.Println("classmux application server")
	logger.Info("Logging configured", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxFrameSize:    cfg.Server.MaxFrameSize.Int(),
		MaxConnections:  cfg.Server.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, st, metrics.NewServerMetrics())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	opsDone := startOpsEndpoint(ctx, cfg, "server", func(ctx context.Context) (map[string]any, error) {
		sqlDB, err := st.DB().DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, err
		}
		return map[string]any{
			"database":           string(cfg.Database.Type),
			"active_connections": srv.GetActiveConnections(),
		}, nil
	})

	return awaitShutdown(cancel, "Server", serverDone, opsDone)
}
