package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"polyinfer-hq/polyinfer/pkg/cli"
	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/server"
)

var serveFlags struct {
	listenAddress string
	watch         bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP server with the specified configuration.

Routes: POST /say, POST /demo, GET /metrics, POST /reset-metrics,
POST /clear-cache, GET /config, GET /health and, when enabled,
GET /metrics/prometheus.

With --watch the configuration file is reloaded when it changes. A reload
replaces the whole configuration; an invalid document is logged and the
running configuration stays in effect. Server and telemetry settings only
take effect on restart.

Examples:
  # Start with default config
  polyinfer serve

  # Override listen address
  polyinfer serve --listen 0.0.0.0:8080

  # Reload providers on file change
  polyinfer serve --config polyinfer.yaml --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVarP(&serveFlags.watch, "watch", "w", false, "reload the configuration file on change")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{exporter: true})
	if err != nil {
		return err
	}
	defer a.close()

	serverCfg := a.cfg.Server
	if serveFlags.listenAddress != "" {
		serverCfg.ListenAddress = serveFlags.listenAddress
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if serveFlags.watch {
		if err := startWatcher(ctx, a); err != nil {
			return cli.NewCommandError("serve", err)
		}
	}

	a.logger.Info("polyinfer starting",
		"version", Version,
		"config", cfgFile,
		"providers", a.cfg.ProviderNames(),
		"mode", a.cfg.Mode,
	)

	srv := server.New(serverCfg, a.orch,
		server.WithLogger(a.logger),
		server.WithVersion(Version),
		server.WithTracerProvider(a.tracer.Provider()),
	)
	if err := srv.Start(ctx); err != nil {
		return commandError(ctx, "serve", err)
	}
	return nil
}

// startWatcher re-initializes the orchestrator whenever the configuration
// file changes. It stops with ctx.
func startWatcher(ctx context.Context, a *app) error {
	w, err := config.NewWatcher(cfgFile, config.WithWatcherLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfgFile, err)
	}

	go func() {
		defer w.Stop()
		err := w.Watch(ctx, func(cfg *config.Config) {
			if err := a.orch.Init(cfg); err != nil {
				a.logger.Error("configuration reload rejected", "error", err)
				return
			}
			a.logger.Info("orchestrator re-initialized", "providers", cfg.ProviderNames())
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Error("configuration watcher stopped", "error", err)
		}
	}()
	return nil
}
