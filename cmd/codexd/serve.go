package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admission server",
	Long: `Start the admission server.

The server will:
  - Load configuration from codex.yaml (or --config), falling back to
    CODEX_* environment variables
  - Open the database and apply migrations
  - Serve /v1/* behind admission control, plus /health, /metrics
    and /version

Examples:
  codexd serve
  codexd serve --config /etc/codex/config.yaml

  # Docker (env vars only):
  CODEX_DATABASE_PATH=/data/codex.db codexd serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		path = ""
	}

	app, err := bootstrap.New(bootstrap.Options{ConfigPath: path})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		app.Logger.Info().Str("signal", sig.String()).Msg("signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.Shutdown(ctx)
}
