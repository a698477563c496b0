// Command eventctl is an operator tool for the bot event gateway: it derives
// bot API keys, encodes and decodes event envelopes, and prepares databases.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "eventctl",
		Short:         "Operator tool for the bot event gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(deriveCmd())
	rootCmd.AddCommand(encodeCmd())
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	return rootCmd
}
