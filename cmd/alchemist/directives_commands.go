package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"alchemist/internal/config"
	"alchemist/internal/store"
)

func newDirectivesCommand(ctx *commandContext) *cobra.Command {
	directivesCmd := &cobra.Command{
		Use:   "directives",
		Short: "Review analyzer directives",
	}

	directivesCmd.AddCommand(newDirectivesListCommand(ctx))
	directivesCmd.AddCommand(newDirectiveStatusCommand(ctx, "ack", "Acknowledge directives", store.DirectiveAcknowledged))
	directivesCmd.AddCommand(newDirectiveStatusCommand(ctx, "dismiss", "Dismiss directives", store.DirectiveDismissed))

	return directivesCmd
}

type directiveView struct {
	ID        int64          `json:"id"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

func newDirectivesListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var all bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List directives (pending by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter store.DirectiveFilter
			for _, raw := range statuses {
				status, err := parseDirectiveStatus(raw)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			if len(filter.Statuses) == 0 && !all {
				filter.Statuses = []store.DirectiveStatus{store.DirectivePending}
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				directives, err := st.QueryDirectives(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]directiveView, 0, len(directives))
					for _, d := range directives {
						views = append(views, directiveView{
							ID: d.ID, Agent: d.Agent, Action: d.Action, Params: d.Params,
							Reason: d.Reason, Status: string(d.Status), CreatedAt: d.CreatedAt,
						})
					}
					return writeJSON(cmd, views)
				}
				if len(directives) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No directives")
					return nil
				}
				rows := make([][]string, 0, len(directives))
				for _, d := range directives {
					rows = append(rows, []string{
						strconv.FormatInt(d.ID, 10),
						d.Agent,
						d.Action,
						formatParams(d.Params),
						string(d.Status),
						truncate(d.Reason, 60),
					})
				}
				table := renderTable(
					[]string{"ID", "Agent", "Action", "Params", "Status", "Reason"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, acknowledged, dismissed)")
	cmd.Flags().BoolVar(&all, "all", false, "Include handled directives")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDirectiveStatusCommand(ctx *commandContext, use, short string, status store.DirectiveStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				for _, id := range ids {
					if err := st.SetDirectiveStatus(cmd.Context(), id, status); err != nil {
						return fmt.Errorf("directive %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Directive %d %s\n", id, strings.ToLower(string(status)))
				}
				return nil
			})
		},
	}
}

func parseDirectiveStatus(raw string) (store.DirectiveStatus, error) {
	status := store.DirectiveStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case store.DirectivePending, store.DirectiveAcknowledged, store.DirectiveDismissed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown directive status %q", raw)
	}
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, params[key]))
	}
	return truncate(strings.Join(parts, " "), 40)
}
