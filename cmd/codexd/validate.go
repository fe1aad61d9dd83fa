package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("%s is valid\n", cfgFile)
	fmt.Printf("  server:    %s\n", cfg.Addr())
	fmt.Printf("  database:  %s\n", cfg.Database.Path)
	fmt.Printf("  window:    %s\n", cfg.Admission.RateWindow)
	fmt.Printf("  tiers:     %d\n", len(cfg.TierTable()))
	fmt.Printf("  features:  %d\n", len(cfg.Features))
	return nil
}
