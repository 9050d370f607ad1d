package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alchemist/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline workers and periodic triggers in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start without running preflight checks")
	return cmd
}
