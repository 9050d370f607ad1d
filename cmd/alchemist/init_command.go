package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alchemist/internal/config"
	"alchemist/internal/store"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create data directories and the pipeline database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Data directory:   %s\n", cfg.Paths.DataDir)
				fmt.Fprintf(out, "Assets directory: %s\n", cfg.Paths.AssetsDir)
				fmt.Fprintf(out, "Log directory:    %s\n", cfg.Paths.LogDir)
				fmt.Fprintf(out, "Database:         %s\n", st.Path())
				fmt.Fprintln(out, "Database schema ready")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Next steps:")
				fmt.Fprintf(out, "  1. List feeds and seed URLs in %s\n", cfg.Paths.SourcesFile)
				fmt.Fprintln(out, "  2. Set llm.api_key (or OPENROUTER_API_KEY) and publishing.wordpress credentials")
				fmt.Fprintln(out, "  3. Run `alchemist status --check` to verify connectivity")
				fmt.Fprintln(out, "  4. Start the pipeline with `alchemist run`")
				return nil
			})
		},
	}
}
