package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "duat",
	Short: "Duat runs Hour-Glass combats and serves the combat monitor.",
	Long: `Duat drives the Hour-Glass combat engine from the command line. ` +
		`It currently provides a scripted demo duel (demo) with live ` +
		`monitoring and optional telemetry recording.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
