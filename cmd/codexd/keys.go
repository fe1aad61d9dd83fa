package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/hasher"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/sqlite"
	"github.com/Moneyman334/codex-wallet-sub000/domain/credential"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Manage API keys.

Each account can hold multiple keys across the four families
(pk_test_, pk_live_, sk_test_, sk_live_). The raw key is printed once
at creation and never stored; only its bcrypt hash persists.

Examples:
  codexd keys create --account=acct_123 --type=secret --env=live
  codexd keys list --account=acct_123
  codexd keys revoke key_abc123`,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE:  runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's API keys",
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key (the record is kept for the audit trail)",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

var (
	keyAccountID string
	keyName      string
	keyTypeFlag  string
	keyEnvFlag   string
	keyPerms     []string
	keyRate      int
)

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)

	keysCreateCmd.Flags().StringVar(&keyAccountID, "account", "", "account ID (required)")
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "key name")
	keysCreateCmd.Flags().StringVar(&keyTypeFlag, "type", "secret", "key type: publishable or secret")
	keysCreateCmd.Flags().StringVar(&keyEnvFlag, "env", "test", "environment: test or live")
	keysCreateCmd.Flags().StringSliceVar(&keyPerms, "permissions", nil, "granted permissions (empty = all)")
	keysCreateCmd.Flags().IntVar(&keyRate, "rate", 0, "per-minute rate override (0 = tier default)")
	keysCreateCmd.MarkFlagRequired("account")

	keysListCmd.Flags().StringVar(&keyAccountID, "account", "", "account ID (required)")
	keysListCmd.MarkFlagRequired("account")
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	var keyType credential.KeyType
	switch keyTypeFlag {
	case "publishable":
		keyType = credential.TypePublishable
	case "secret":
		keyType = credential.TypeSecret
	default:
		return fmt.Errorf("invalid key type %q (publishable or secret)", keyTypeFlag)
	}

	var env credential.Environment
	switch keyEnvFlag {
	case "test":
		env = credential.EnvTest
	case "live":
		env = credential.EnvLive
	default:
		return fmt.Errorf("invalid environment %q (test or live)", keyEnvFlag)
	}

	db, cfg, err := openDatabaseWithConfig()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	// Refuse to attach keys to accounts that do not exist.
	if _, err := sqlite.NewAccountStore(db).Get(ctx, keyAccountID); err != nil {
		return fmt.Errorf("account %s: %w", keyAccountID, err)
	}

	raw, k := credential.Generate(keyType, env)
	k.Hash, err = hasher.NewBcrypt(cfg.Admission.BcryptCost).Hash(raw)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	k = k.WithAccountID(keyAccountID).WithName(keyName)
	k.Permissions = keyPerms
	k.RatePerMinute = keyRate

	if err := sqlite.NewKeyStore(db).Create(ctx, k); err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Printf("Created key %s for %s\n\n", k.ID, keyAccountID)
	fmt.Printf("  %s\n\n", raw)
	fmt.Println("Store this key now. It cannot be shown again.")
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := sqlite.NewKeyStore(db).ListByAccount(context.Background(), keyAccountID)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Printf("No keys found for account %s.\n", keyAccountID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tTYPE/ENV\tACTIVE\tTODAY\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsed != nil {
			lastUsed = k.LastUsed.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s...\t%s/%s\t%t\t%d\t%s\n",
			k.ID, k.Name, k.Prefix, k.Type, k.Environment,
			k.Active, k.RequestsToday, lastUsed)
	}
	return w.Flush()
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	keyID := strings.TrimSpace(args[0])

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewKeyStore(db).Revoke(context.Background(), keyID); err != nil {
		return fmt.Errorf("revoke key %s: %w", keyID, err)
	}

	fmt.Printf("Revoked key %s\n", keyID)
	return nil
}
