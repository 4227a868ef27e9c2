package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"instalytics/internal/janitor"
	"instalytics/pkg/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on the configured address.

Expired profiles are purged in the background every cache.purge_interval
(set it to 0 to disable purging). The server drains in-flight requests on
SIGINT or SIGTERM.`,
	Example: `  instalytics serve
  instalytics serve --address :8080 --cache-driver postgres --cache-dsn postgres://localhost/instalytics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (default :3000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"address": serveAddress})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	printer.Logo()
	if err := a.requireToken(); err != nil {
		// cached profiles can still be served
		a.log.WithError(err).Warn("Starting without an upstream token")
	}

	srv, err := server.New(cfg, a.aggregator, a.cache, a.log, a.metrics)
	if err != nil {
		return err
	}

	if cfg.Cache.PurgeInterval > 0 {
		j := janitor.New(a.cache, a.log, a.metrics)
		j.Start(ctx, cfg.Cache.PurgeInterval)
		defer j.Stop()
	}

	return srv.Run(ctx)
}

// commandContext is the command context, or Background when run outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
