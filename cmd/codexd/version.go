package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	codexhttp "github.com/Moneyman334/codex-wallet-sub000/adapters/http"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codexd %s (%s, %s/%s)\n",
			codexhttp.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
