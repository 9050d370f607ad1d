package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/services"
	"alchemist/internal/services/llm"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

const (
	defaultWindowDays   = 7
	analysisMaxTokens   = 1000
	analysisTemperature = 0.6
)

// Directive is one decoded analyzer recommendation. Fields other than agent,
// action, and reason are kept in Params.
type Directive struct {
	Agent  string
	Action string
	Reason string
	Params map[string]any
}

// UnmarshalJSON splits the known directive fields from the free-form ones.
func (d *Directive) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("directive is not an object")
	}
	d.Agent, _ = raw["agent"].(string)
	d.Action, _ = raw["action"].(string)
	d.Reason, _ = raw["reason"].(string)
	d.Agent = strings.TrimSpace(d.Agent)
	d.Action = strings.TrimSpace(d.Action)
	if d.Agent == "" || d.Action == "" {
		return errors.New("directive requires agent and action")
	}
	delete(raw, "agent")
	delete(raw, "action")
	delete(raw, "reason")
	d.Params = raw
	return nil
}

type analysis struct {
	Directives *[]Directive `json:"directives"`
}

type contentPerformance struct {
	ContentID int64              `json:"content_id"`
	Title     string             `json:"title"`
	Averages  map[string]float64 `json:"averages"`
	Samples   int                `json:"samples"`
}

// Analyzer turns metric aggregates into stored directives.
type Analyzer struct {
	cfg      *config.Config
	store    *store.Store
	llm      Completer
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithNotifier announces stored directives.
func WithNotifier(notifier notifications.Service) AnalyzerOption {
	return func(a *Analyzer) { a.notifier = notifier }
}

// WithClock overrides the analysis window clock.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer constructs the analysis stage.
func NewAnalyzer(cfg *config.Config, st *store.Store, completer Completer, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{cfg: cfg, store: st, llm: completer, logger: logging.NewComponentLogger(logger, "analyzer"), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Analyze aggregates the metric window, asks the model for directives, and
// stores them as PENDING in one transaction. Malformed output stores nothing.
func (a *Analyzer) Analyze(ctx context.Context) stage.Outcome {
	if a == nil || a.store == nil || a.llm == nil {
		return stage.Reject("analyzer not configured",
			services.Wrap(services.ErrConfiguration, "analyzer", "init", "store and llm are required", nil))
	}
	logger := logging.WithContext(ctx, a.logger)

	days := defaultWindowDays
	if a.cfg != nil && a.cfg.Metrics.WindowDays > 0 {
		days = a.cfg.Metrics.WindowDays
	}
	averages, err := a.store.AverageMetrics(ctx, a.now().AddDate(0, 0, -days))
	if err != nil {
		return stage.Retry("aggregate metrics", err)
	}
	if len(averages) == 0 {
		return stage.NoWork(0, "no metrics in window")
	}
	data, err := json.MarshalIndent(groupAverages(averages), "", "  ")
	if err != nil {
		return stage.Reject("encode performance", services.Wrap(services.ErrValidation, "analyzer", "encode", "performance data", err))
	}

	raw, err := a.llm.Complete(ctx, analysisPrompt(string(data)), analysisMaxTokens, analysisTemperature)
	if err != nil {
		return stage.Classify("performance analysis", err)
	}
	directives, err := decodeDirectives(raw)
	if err != nil {
		logging.WarnWithContext(logger, "directives rejected", "directives_malformed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the analysis model output"),
			logging.String(logging.FieldImpact, "no directives were stored for this window"),
		)
		return stage.Reject("malformed directives", services.Wrap(services.ErrValidation, "analyzer", "decode", "directives", err))
	}
	if len(directives) == 0 {
		return stage.NoWork(0, "no directives suggested")
	}

	batch := make([]*store.Directive, 0, len(directives))
	for _, d := range directives {
		batch = append(batch, &store.Directive{Agent: d.Agent, Action: d.Action, Params: d.Params, Reason: d.Reason})
	}
	stored, err := a.store.InsertDirectives(ctx, batch)
	if err != nil {
		return stage.Retry("store directives", err)
	}
	for _, d := range stored {
		logger.Info("directive stored",
			logging.Int64("directive_id", d.ID),
			logging.String("agent", d.Agent),
			logging.String("action", d.Action),
		)
	}
	if a.notifier != nil {
		if err := a.notifier.Publish(ctx, notifications.EventDirectivesEmitted, notifications.Payload{"count": len(directives)}); err != nil {
			logger.Debug("directive notification failed", logging.Error(err))
		}
	}
	return stage.New(0, fmt.Sprintf("%d directives stored", len(directives)))
}

func decodeDirectives(raw string) ([]Directive, error) {
	var out analysis
	if err := llm.DecodeLLMJSON(raw, &out); err != nil {
		return nil, err
	}
	if out.Directives == nil {
		return nil, errors.New("missing directives list")
	}
	return *out.Directives, nil
}

func groupAverages(averages []store.MetricAverage) []contentPerformance {
	var out []contentPerformance
	index := map[int64]int{}
	for _, avg := range averages {
		pos, ok := index[avg.ContentID]
		if !ok {
			pos = len(out)
			index[avg.ContentID] = pos
			out = append(out, contentPerformance{ContentID: avg.ContentID, Title: avg.Title, Averages: map[string]float64{}})
		}
		out[pos].Averages[string(avg.Type)] = avg.Average
		out[pos].Samples += avg.Samples
	}
	return out
}

func analysisPrompt(data string) string {
	return `Analyze the following content performance data. Identify clear trends such as high-performing topics, weak platforms, or content types with low revenue.
Suggest specific, actionable directives for content generation, SEO, distribution, and monetization. Weigh the cost of generating content against its revenue.

Data:
` + data + `

Return JSON only, for example:
{"directives": [
  {"agent": "content_generation", "action": "generate_more", "topic_focus": "solar_panel_cleaning", "quantity": 5, "language": "hi", "reason": "..."},
  {"agent": "seo_distribution", "action": "re_optimize_meta", "content_ids": [123, 456], "reason": "..."}
]}`
}
