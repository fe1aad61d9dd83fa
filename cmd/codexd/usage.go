package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/sqlite"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect the usage log",
	Long: `Inspect the usage log.

Examples:
  codexd usage recent --account=acct_123
  codexd usage summary --account=acct_123`,
}

var usageRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show an account's most recent requests",
	RunE:  runUsageRecent,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show an account's quota position",
	RunE:  runUsageSummary,
}

var (
	usageAccountID string
	usageLimit     int
)

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.AddCommand(usageRecentCmd)
	usageCmd.AddCommand(usageSummaryCmd)

	usageRecentCmd.Flags().StringVar(&usageAccountID, "account", "", "account ID (required)")
	usageRecentCmd.Flags().IntVar(&usageLimit, "limit", 20, "number of entries")
	usageRecentCmd.MarkFlagRequired("account")

	usageSummaryCmd.Flags().StringVar(&usageAccountID, "account", "", "account ID (required)")
	usageSummaryCmd.MarkFlagRequired("account")
}

func runUsageRecent(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := sqlite.NewUsageLogStore(db).Recent(context.Background(), usageAccountID, usageLimit)
	if err != nil {
		return fmt.Errorf("read usage log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Printf("No usage recorded for account %s.\n", usageAccountID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMETHOD\tENDPOINT\tSTATUS\tMS\tBURST")
	for _, e := range entries {
		status := "-"
		if e.StatusCode != nil {
			status = fmt.Sprintf("%d", *e.StatusCode)
		}
		ms := "-"
		if e.ResponseTimeMs != nil {
			ms = fmt.Sprintf("%d", *e.ResponseTimeMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Method, e.Endpoint, status, ms, e.BurstClass)
	}
	return w.Flush()
}

func runUsageSummary(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := sqlite.NewAccountStore(db).Get(context.Background(), usageAccountID)
	if err != nil {
		return fmt.Errorf("account %s: %w", usageAccountID, err)
	}

	fmt.Printf("Account:   %s (%s)\n", a.ID, a.Email)
	fmt.Printf("Status:    %s\n", a.Status)
	fmt.Printf("Tier:      %s\n", a.Tier)
	fmt.Printf("Used:      %d of %d this month\n", a.RequestsThisMonth, a.MonthlyQuota)
	fmt.Printf("Remaining: %d\n", a.QuotaRemaining())
	return nil
}
