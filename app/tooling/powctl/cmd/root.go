// Package cmd contains the pool operator commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "powctl",
	Short:         "Operate and inspect the proof of work mining pool",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
