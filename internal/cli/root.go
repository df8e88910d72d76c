// Package cli implements the iso20022sim command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "iso20022sim",
		Short: "ISO 20022 message simulator",
		Long: `iso20022sim parses and validates ISO 20022 payment messages and replies
with the matching status report, return or reject document.

Run "serve" to start the HTTP simulator, or "validate" to check a file locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(newServeCmd(version))
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newVersionCmd(version))

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
