package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"alchemist/internal/stage"
)

// Task names understood by the standard pipeline.
const (
	TaskDiscoverSources   = "discover_sources"
	TaskScrapeURL         = "scrape_url"
	TaskProcessUnparsed   = "process_unparsed"
	TaskParseRaw          = "parse_raw"
	TaskTriggerGeneration = "trigger_generation"
	TaskGenerateArticle   = "generate_article"
	TaskGenerateImages    = "generate_images"
	TaskGenerateVideo     = "generate_video"
	TaskMonetize          = "monetize_content"
	TaskOptimizeSEO       = "optimize_seo"
	TaskPublishReady      = "publish_ready"
	TaskPublish           = "publish_content"
	TaskCollectMetrics    = "collect_metrics"
	TaskAnalyze           = "analyze_performance"
)

// Criticality selects the retry backoff base of a task.
type Criticality int

const (
	CriticalityLow Criticality = iota + 1
	CriticalityMedium
	CriticalityHigh
)

func (c Criticality) String() string {
	switch c {
	case CriticalityLow:
		return "low"
	case CriticalityMedium:
		return "medium"
	case CriticalityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Dispatch requests one downstream run.
type Dispatch struct {
	Task     string
	Payload  any
	DedupKey string
	Delay    time.Duration
}

// RunFunc executes one run of a task.
type RunFunc func(ctx context.Context, payload json.RawMessage) stage.Outcome

// FanoutFunc lists the runs a periodic sweep should enqueue. The manager
// spaces them with the task's jitter range.
type FanoutFunc func(ctx context.Context, payload json.RawMessage) ([]Dispatch, error)

// NextFunc returns the runs chained after a finished run. It is not called
// for Transient outcomes.
type NextFunc func(payload json.RawMessage, outcome stage.Outcome) []Dispatch

// Task describes a named unit of schedulable work. Exactly one of Run or
// Fanout is set.
type Task struct {
	Name        string
	Criticality Criticality
	MaxAttempts int
	Run         RunFunc
	Fanout      FanoutFunc
	Next        NextFunc
}

// Registry maps task names to tasks.
type Registry struct {
	tasks map[string]Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds task. Names must be unique.
func (r *Registry) Register(task Task) error {
	task.Name = strings.TrimSpace(task.Name)
	if task.Name == "" {
		return errors.New("task name is required")
	}
	if (task.Run == nil) == (task.Fanout == nil) {
		return fmt.Errorf("task %s: exactly one of Run or Fanout must be set", task.Name)
	}
	if _, exists := r.tasks[task.Name]; exists {
		return fmt.Errorf("task %s already registered", task.Name)
	}
	if task.Criticality == 0 {
		task.Criticality = CriticalityMedium
	}
	r.tasks[task.Name] = task
	return nil
}

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (Task, bool) {
	if r == nil {
		return Task{}, false
	}
	task, ok := r.tasks[name]
	return task, ok
}

// Names lists registered task names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
