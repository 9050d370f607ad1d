package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alchemist/internal/config"
	"alchemist/internal/store"
	"alchemist/internal/textutil"
	"alchemist/internal/workflow"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage scheduled task runs",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueEnqueueCommand(ctx))
	queueCmd.AddCommand(newQueueRequeueRawCommand(ctx))

	return queueCmd
}

type taskRunView struct {
	ID            int64           `json:"id"`
	Task          string          `json:"task"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	Exhausted     bool            `json:"exhausted"`
	NotBefore     time.Time       `json:"not_before"`
	LastError     string          `json:"last_error,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	ParentID      int64           `json:"parent_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newTaskRunView(run *store.TaskRun) taskRunView {
	return taskRunView{
		ID:            run.ID,
		Task:          run.Task,
		Status:        string(run.Status),
		Attempts:      run.Attempts,
		MaxAttempts:   run.MaxAttempts,
		Exhausted:     run.Exhausted(),
		NotBefore:     run.NotBefore,
		LastError:     run.LastError,
		CorrelationID: run.CorrelationID,
		ParentID:      run.ParentID,
		Payload:       run.Payload,
		CreatedAt:     run.CreatedAt,
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var tasks []string
	var exhausted bool
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.TaskFilter{Tasks: tasks, Exhausted: exhausted, Limit: limit}
			for _, raw := range statuses {
				status, err := parseTaskStatus(raw)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				runs, err := st.ListTasks(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]taskRunView, 0, len(runs))
					for _, run := range runs {
						views = append(views, newTaskRunView(run))
					}
					return writeJSON(cmd, views)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Task", "Status", "Attempts", "Due", "Last Error"},
					buildTaskRows(runs, time.Now()),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (queued, running, succeeded, failed_retryable, failed_terminal)")
	cmd.Flags().StringSliceVarP(&tasks, "task", "t", nil, "Filter by task name")
	cmd.Flags().BoolVar(&exhausted, "exhausted", false, "Only show retryable runs that used every attempt")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildTaskRows(runs []*store.TaskRun, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := string(run.Status)
		if run.Exhausted() {
			status += " (exhausted)"
		}
		due := "-"
		if run.Status == store.TaskQueued || (run.Status == store.TaskFailedRetryable && !run.Exhausted()) {
			due = humanize.RelTime(run.NotBefore, now, "ago", "from now")
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.Task,
			status,
			fmt.Sprintf("%d/%d", run.Attempts, run.MaxAttempts),
			due,
			truncate(run.LastError, 60),
		})
	}
	return rows
}

func parseTaskStatus(raw string) (store.TaskStatus, error) {
	status := store.TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case store.TaskQueued, store.TaskRunning, store.TaskSucceeded, store.TaskFailedRetryable, store.TaskFailedTerminal:
		return status, nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue terminal or exhausted runs with a fresh attempt budget",
		Long:  "Requeue failed task runs. Without ids every terminal or exhausted run is requeued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				count, err := st.RetryTasks(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				if count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed runs to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d run(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueEnqueueCommand(ctx *commandContext) *cobra.Command {
	var payload string
	var dedupKey string

	cmd := &cobra.Command{
		Use:   "enqueue <task>",
		Short: "Schedule a task run now",
		Long:  "Schedule a task run now. Known tasks: " + strings.Join(workflow.TaskNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.TrimSpace(payload)
			if body == "" {
				body = "{}"
			}
			if !json.Valid([]byte(body)) {
				return fmt.Errorf("payload is not valid JSON")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				registry, err := workflow.NewPipeline(cfg, st, workflow.Stages{})
				if err != nil {
					return err
				}
				run, err := workflow.EnqueueTask(cmd.Context(), st, cfg, registry, workflow.Dispatch{
					Task:     args[0],
					Payload:  json.RawMessage(body),
					DedupKey: strings.TrimSpace(dedupKey),
				}, nil)
				if errors.Is(err, store.ErrDuplicate) {
					fmt.Fprintf(cmd.OutOrStdout(), "An active %s run with key %q already exists\n", args[0], dedupKey)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s run %d (correlation %s)\n", run.Task, run.ID, run.CorrelationID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload for the run")
	cmd.Flags().StringVar(&dedupKey, "dedup-key", "", "Skip when an active run with this key exists")
	return cmd
}

func newQueueRequeueRawCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue-raw <raw-id...>",
		Short: "Reset failed raw pages to NEW and schedule parse_raw for them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				registry, err := workflow.NewPipeline(cfg, st, workflow.Stages{})
				if err != nil {
					return err
				}
				for _, id := range ids {
					if err := st.RequeueRaw(cmd.Context(), id); err != nil {
						return fmt.Errorf("raw %d: %w", id, err)
					}
					_, err := workflow.EnqueueTask(cmd.Context(), st, cfg, registry, workflow.Dispatch{
						Task:     workflow.TaskParseRaw,
						Payload:  workflow.RawPayload{RawID: id},
						DedupKey: fmt.Sprintf("raw:%d", id),
					}, nil)
					if err != nil && !errors.Is(err, store.ErrDuplicate) {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Raw %d requeued for parsing\n", id)
				}
				return nil
			})
		},
	}
}

func truncate(value string, limit int) string {
	value = textutil.CollapseWhitespace(value)
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	return textutil.TruncateRunes(value, limit-1) + "…"
}
