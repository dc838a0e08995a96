package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "game-ingest-service",
		Short:        "Ingest finished PvP games into the daily wager ledger",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file with configuration (default: ./.env if present)")

	rootCmd.AddCommand(newRunCmd(), newConsoleCmd())
	return rootCmd
}
