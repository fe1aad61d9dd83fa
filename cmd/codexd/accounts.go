package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/sqlite"
	"github.com/Moneyman334/codex-wallet-sub000/config"
	"github.com/Moneyman334/codex-wallet-sub000/domain/account"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/google/uuid"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage developer accounts",
	Long: `Manage developer accounts.

Examples:
  codexd accounts create --email=dev@example.com --tier=starter
  codexd accounts list
  codexd accounts suspend acct_abc123
  codexd accounts activate acct_abc123
  codexd accounts reset-month`,
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a developer account",
	RunE:  runAccountsCreate,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List developer accounts",
	RunE:  runAccountsList,
}

var accountsSuspendCmd = &cobra.Command{
	Use:   "suspend <account-id>",
	Short: "Suspend an account (rejects all its requests)",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAccountStatus(args[0], account.StatusSuspended) },
}

var accountsActivateCmd = &cobra.Command{
	Use:   "activate <account-id>",
	Short: "Reactivate a suspended account",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setAccountStatus(args[0], account.StatusActive) },
}

var accountsResetMonthCmd = &cobra.Command{
	Use:   "reset-month",
	Short: "Zero monthly usage counters (run by the billing job at period rollover)",
	RunE:  runAccountsResetMonth,
}

var (
	acctEmail string
	acctTier  string
)

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsSuspendCmd)
	accountsCmd.AddCommand(accountsActivateCmd)
	accountsCmd.AddCommand(accountsResetMonthCmd)

	accountsCreateCmd.Flags().StringVar(&acctEmail, "email", "", "account email (required)")
	accountsCreateCmd.Flags().StringVar(&acctTier, "tier", tier.DefaultName, "service tier")
	accountsCreateCmd.MarkFlagRequired("email")
}

func runAccountsCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}
	t := tier.Find(cfg.TierTable(), acctTier)

	now := time.Now().UTC()
	a := account.Account{
		ID:           "acct_" + uuid.NewString(),
		Email:        acctEmail,
		Status:       account.StatusActive,
		Tier:         t.Name,
		MonthlyQuota: t.RequestsPerMonth,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := sqlite.NewAccountStore(db).Create(context.Background(), a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("Created account %s (%s, tier %s, quota %d/month)\n", a.ID, a.Email, a.Tier, a.MonthlyQuota)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	accounts, err := sqlite.NewAccountStore(db).List(context.Background(), 100, 0)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tSTATUS\tTIER\tUSED/QUOTA\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			a.ID, a.Email, a.Status, a.Tier,
			a.RequestsThisMonth, a.MonthlyQuota,
			a.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func setAccountStatus(id, status string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewAccountStore(db)
	ctx := context.Background()

	a, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("account %s: %w", id, err)
	}

	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	if err := store.Update(ctx, a); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	fmt.Printf("Account %s is now %s\n", id, status)
	return nil
}

func runAccountsResetMonth(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := sqlite.NewAccountStore(db).ResetMonthlyUsage(context.Background())
	if err != nil {
		return fmt.Errorf("reset monthly usage: %w", err)
	}

	fmt.Printf("Reset monthly counters on %d accounts\n", n)
	return nil
}
