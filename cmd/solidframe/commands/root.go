package commands

import (
	"github.com/spf13/cobra"
)

// grpcAddr is the address of the solidframed admin gRPC service.
var grpcAddr string

// outputFormat controls output format (text, json).
var outputFormat string

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "solidframe",
	Short: "solidframe admin CLI",
	Long: `solidframe is the admin CLI for a running solidframed daemon.

Use this CLI to inspect reactor load, list hosted actors, check buffer
pool accounting, and post events to actors over the admin gRPC
service.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&grpcAddr, "addr", "localhost:10009",
		"Address of the solidframed admin gRPC service",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(actorsCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(versionCmd)
}
