// Package cli wires the examd commands: serve, migrate and export.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "examd",
		Short:         "Clicker exam backend: freeze exams, ingest live answers, report and export results",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config (env vars override it)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newMigrateCmd(&configPath))
	cmd.AddCommand(newExportCmd(&configPath))
	return cmd
}
