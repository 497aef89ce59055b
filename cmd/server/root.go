package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "fieldops",
	Short: "Fieldops - agricultural field operations server",
	Long: `Fieldops tracks field work on agricultural plots.

It provides a REST API for the task lifecycle, the inventory ledger
and harvest consolidation.

Run 'fieldops serve' to start the server, 'fieldops import' to seed
reference data, or 'fieldops token' to mint an API token.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(tokenCmd)
}
