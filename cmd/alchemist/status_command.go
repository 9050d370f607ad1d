package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"alchemist/internal/config"
	"alchemist/internal/daemonrun"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/preflight"
	"alchemist/internal/store"
)

const networkCheckTimeout = 30 * time.Second

type statusView struct {
	DaemonRunning bool                      `json:"daemon_running"`
	DatabasePath  string                    `json:"database_path"`
	LockPath      string                    `json:"lock_path"`
	Tasks         taskSummaryView           `json:"tasks"`
	Store         map[string]map[string]int `json:"store"`
	Checks        []checkView               `json:"checks"`
	Stages        []stageView               `json:"stages"`
}

type stageView struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

type taskSummaryView struct {
	Queued    int        `json:"queued"`
	Running   int        `json:"running"`
	Succeeded int        `json:"succeeded"`
	Retrying  int        `json:"retrying"`
	Exhausted int        `json:"exhausted"`
	Terminal  int        `json:"terminal"`
	Total     int        `json:"total"`
	OldestDue *time.Time `json:"oldest_due,omitempty"`
}

type checkView struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional"`
	Detail   string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var network bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status, store counts, and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				view, err := buildStatusView(cmd.Context(), cfg, st, network)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderStatus(view))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&network, "check", false, "Also verify the LLM and WordPress endpoints")
	return cmd
}

func buildStatusView(ctx context.Context, cfg *config.Config, st *store.Store, network bool) (statusView, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	running, err := daemonRunning(cfg.LockPath())
	if err != nil {
		return statusView{}, fmt.Errorf("check daemon lock: %w", err)
	}
	tasks, err := st.TaskStats(ctx)
	if err != nil {
		return statusView{}, err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return statusView{}, err
	}

	results := preflight.RunAll(cfg)
	if network {
		checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
		results = append(results, preflight.CheckLLM(checkCtx, cfg.LLM))
		if strings.TrimSpace(cfg.Publishing.WordPress.URL) != "" {
			results = append(results, preflight.CheckWordPress(checkCtx, cfg.Publishing.WordPress))
		}
		cancel()
	}
	checks := make([]checkView, 0, len(results))
	for _, r := range results {
		checks = append(checks, checkView{Name: r.Name, Passed: r.Passed, Optional: r.Optional, Detail: r.Detail})
	}

	var stages []stageView
	built, err := daemonrun.BuildStages(cfg, st, logging.NewNop(), notifications.NewService(cfg))
	if err != nil {
		stages = append(stages, stageView{Name: "pipeline", Detail: err.Error()})
	} else {
		for _, h := range built.Health(cfg) {
			stages = append(stages, stageView{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
		}
	}

	return statusView{
		DaemonRunning: running,
		DatabasePath:  st.Path(),
		LockPath:      cfg.LockPath(),
		Tasks: taskSummaryView{
			Queued:    tasks.Queued,
			Running:   tasks.Running,
			Succeeded: tasks.Succeeded,
			Retrying:  tasks.Retrying,
			Exhausted: tasks.Exhausted,
			Terminal:  tasks.Terminal,
			Total:     tasks.TotalCount,
			OldestDue: tasks.OldestDue,
		},
		Store:  stats,
		Checks: checks,
		Stages: stages,
	}, nil
}

// daemonRunning reports whether another process holds the instance lock.
func daemonRunning(lockPath string) (bool, error) {
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if locked {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func renderStatus(view statusView) string {
	var b strings.Builder
	daemonState := "stopped"
	if view.DaemonRunning {
		daemonState = "running"
	}
	fmt.Fprintf(&b, "Daemon:   %s\n", daemonState)
	fmt.Fprintf(&b, "Database: %s\n", view.DatabasePath)
	if view.Tasks.OldestDue != nil {
		fmt.Fprintf(&b, "Oldest due task: %s\n", view.Tasks.OldestDue.UTC().Format(time.RFC3339))
	}

	taskRows := [][]string{
		{"Queued", strconv.Itoa(view.Tasks.Queued)},
		{"Running", strconv.Itoa(view.Tasks.Running)},
		{"Succeeded", strconv.Itoa(view.Tasks.Succeeded)},
		{"Retrying", strconv.Itoa(view.Tasks.Retrying)},
		{"Exhausted", strconv.Itoa(view.Tasks.Exhausted)},
		{"Terminal", strconv.Itoa(view.Tasks.Terminal)},
	}
	checkRows := make([][]string, 0, len(view.Checks))
	for _, c := range view.Checks {
		result := "ok"
		switch {
		case !c.Passed && c.Optional:
			result = "warn"
		case !c.Passed:
			result = "FAIL"
		}
		checkRows = append(checkRows, []string{c.Name, result, c.Detail})
	}
	stageRows := make([][]string, 0, len(view.Stages))
	for _, st := range view.Stages {
		ready := "ready"
		if !st.Ready {
			ready = "unavailable"
		}
		stageRows = append(stageRows, []string{st.Name, ready, st.Detail})
	}

	for _, layout := range []tableLayout{
		{Title: "Tasks", Headers: []string{"State", "Count"}, Rows: taskRows, Aligns: []columnAlignment{alignLeft, alignRight}},
		{Title: "Store", Headers: []string{"Table", "Status", "Count"}, Rows: storeRows(view.Store),
			Aligns: []columnAlignment{alignLeft, alignLeft, alignRight}, Empty: "empty"},
		{Title: "Stages", Headers: []string{"Stage", "State", "Detail"}, Rows: stageRows},
		{Title: "Checks", Headers: []string{"Check", "Result", "Detail"}, Rows: checkRows},
	} {
		b.WriteString("\n")
		b.WriteString(renderTableLayout(layout))
		b.WriteString("\n")
	}
	return b.String()
}

func storeRows(stats map[string]map[string]int) [][]string {
	tables := make([]string, 0, len(stats))
	for table := range stats {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var rows [][]string
	for _, table := range tables {
		statuses := make([]string, 0, len(stats[table]))
		for status := range stats[table] {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		if len(statuses) == 0 {
			rows = append(rows, []string{table, "-", "0"})
			continue
		}
		for _, status := range statuses {
			rows = append(rows, []string{table, status, strconv.Itoa(stats[table][status])})
		}
	}
	return rows
}
