package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/sqlite"
	"github.com/Moneyman334/codex-wallet-sub000/config"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codexd",
	Short: "Admission control for the wallet API: keys, quotas, rate limits",
	Long: `codexd decides, for every inbound API request, whether it may
proceed: resolve the API key, gate on the owning developer account,
enforce the monthly quota and per-minute rate limit in one transaction,
and record the request for analytics.

Quick start:
  codexd serve              # Start the admission server

Management:
  codexd accounts           # Manage developer accounts
  codexd keys               # Manage API keys
  codexd usage              # Inspect the usage log
  codexd validate           # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "codex.yaml", "config file path")
}

// openDatabase opens the configured SQLite database for management
// commands, applying pending migrations.
func openDatabase() (*sqlite.DB, error) {
	db, _, err := openDatabaseWithConfig()
	return db, err
}

// openDatabaseWithConfig additionally returns the loaded configuration,
// for commands that need more than the database path (bcrypt cost).
func openDatabaseWithConfig() (*sqlite.DB, *config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, cfg, nil
}
