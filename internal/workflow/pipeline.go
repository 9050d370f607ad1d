package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"alchemist/internal/config"
	"alchemist/internal/distribution"
	"alchemist/internal/feedback"
	"alchemist/internal/generation"
	"alchemist/internal/ingest"
	"alchemist/internal/monetize"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

// Stages bundles the stage implementations the standard pipeline runs. A nil
// stage leaves its tasks registered but rejecting every run with a
// configuration error.
type Stages struct {
	Discoverer ingest.SourceDiscoverer
	Scraper    *ingest.Scraper
	Parser     *ingest.Parser
	Generator  *generation.Generator
	Injector   *monetize.Injector
	Optimizer  *distribution.Optimizer
	Publisher  *distribution.Publisher
	Collector  *feedback.Collector
	Analyzer   *feedback.Analyzer
}

// PipelineOption configures optional pipeline behavior.
type PipelineOption func(*pipeline)

// WithPipelineClock overrides the time source the publish sweep uses for its
// settle window.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline registers every task of the content pipeline and its chaining.
func NewPipeline(cfg *config.Config, st *store.Store, stages Stages, opts ...PipelineOption) (*Registry, error) {
	p := &pipeline{cfg: cfg, store: st, stages: stages, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	reg := NewRegistry()
	tasks := []Task{
		{Name: TaskDiscoverSources, Criticality: CriticalityLow, Fanout: p.discoverSources},
		{Name: TaskScrapeURL, Criticality: CriticalityLow, Run: p.scrapeURL, Next: p.afterScrape},
		{Name: TaskProcessUnparsed, Criticality: CriticalityLow, Fanout: p.processUnparsed},
		{Name: TaskParseRaw, Criticality: CriticalityLow, Run: p.parseRaw},
		{Name: TaskTriggerGeneration, Criticality: CriticalityMedium, Fanout: p.triggerGeneration},
		{Name: TaskGenerateArticle, Criticality: CriticalityMedium, Run: p.generateArticle, Next: p.afterArticle},
		{Name: TaskGenerateImages, Criticality: CriticalityMedium, Run: p.generateImages},
		{Name: TaskGenerateVideo, Criticality: CriticalityMedium, Run: p.generateVideo},
		{Name: TaskMonetize, Criticality: CriticalityMedium, Run: p.monetize, Next: p.afterMonetize},
		{Name: TaskOptimizeSEO, Criticality: CriticalityMedium, Run: p.optimizeSEO, Next: p.afterSEO},
		{Name: TaskPublishReady, Criticality: CriticalityMedium, Fanout: p.publishReady},
		{Name: TaskPublish, Criticality: CriticalityMedium, Run: p.publish},
		{Name: TaskCollectMetrics, Criticality: CriticalityHigh, Run: p.collectMetrics, Next: p.afterCollect},
		{Name: TaskAnalyze, Criticality: CriticalityHigh, Run: p.analyze},
	}
	for _, task := range tasks {
		if err := reg.Register(task); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// TaskNames lists the tasks NewPipeline registers.
func TaskNames() []string {
	return []string{
		TaskDiscoverSources, TaskScrapeURL, TaskProcessUnparsed, TaskParseRaw,
		TaskTriggerGeneration, TaskGenerateArticle, TaskGenerateImages, TaskGenerateVideo,
		TaskMonetize, TaskOptimizeSEO, TaskPublishReady, TaskPublish,
		TaskCollectMetrics, TaskAnalyze,
	}
}

type pipeline struct {
	cfg    *config.Config
	store  *store.Store
	stages Stages
	now    func() time.Time
}

func unconfigured(task string) stage.Outcome {
	return stage.Reject("stage not configured", services.Wrap(services.ErrConfiguration, task, "run", "stage not wired", nil))
}

func (p *pipeline) discoverSources(ctx context.Context, _ json.RawMessage) ([]Dispatch, error) {
	if p.stages.Discoverer == nil {
		return nil, services.Wrap(services.ErrConfiguration, TaskDiscoverSources, "discover", "source discoverer not configured", nil)
	}
	urls, err := ingest.NewURLs(ctx, p.store, p.stages.Discoverer)
	if err != nil {
		return nil, err
	}
	dispatches := make([]Dispatch, 0, len(urls))
	for _, url := range urls {
		dispatches = append(dispatches, Dispatch{Task: TaskScrapeURL, Payload: URLPayload{URL: url}, DedupKey: url})
	}
	return dispatches, nil
}

func (p *pipeline) scrapeURL(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Scraper == nil {
		return unconfigured(TaskScrapeURL)
	}
	payload, err := decodePayload[URLPayload](TaskScrapeURL, raw)
	if err != nil {
		return stage.Reject("invalid payload", err)
	}
	if strings.TrimSpace(payload.URL) == "" {
		return invalidPayload(TaskScrapeURL, "url is required")
	}
	return p.stages.Scraper.Scrape(ctx, payload.URL)
}

func (p *pipeline) afterScrape(_ json.RawMessage, outcome stage.Outcome) []Dispatch {
	if outcome.Kind != stage.SuccessNew || outcome.EntityID == 0 {
		return nil
	}
	return []Dispatch{rawDispatch(outcome.EntityID)}
}

func rawDispatch(id int64) Dispatch {
	return Dispatch{Task: TaskParseRaw, Payload: RawPayload{RawID: id}, DedupKey: fmt.Sprintf("raw:%d", id)}
}

func (p *pipeline) processUnparsed(ctx context.Context, _ json.RawMessage) ([]Dispatch, error) {
	rows, err := p.store.UnprocessedRaw(ctx, p.cfg.Scrape.RawBatchSize)
	if err != nil {
		return nil, err
	}
	dispatches := make([]Dispatch, 0, len(rows))
	for _, row := range rows {
		dispatches = append(dispatches, rawDispatch(row.ID))
	}
	return dispatches, nil
}

func (p *pipeline) parseRaw(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Parser == nil {
		return unconfigured(TaskParseRaw)
	}
	payload, err := decodePayload[RawPayload](TaskParseRaw, raw)
	if err != nil {
		return stage.Reject("invalid payload", err)
	}
	if payload.RawID <= 0 {
		return invalidPayload(TaskParseRaw, "raw_id is required")
	}
	return p.stages.Parser.Parse(ctx, payload.RawID)
}

func (p *pipeline) triggerGeneration(ctx context.Context, _ json.RawMessage) ([]Dispatch, error) {
	facts, err := p.store.FactsReadyForGeneration(ctx, p.cfg.Niche.ContentVolumePerDay)
	if err != nil {
		return nil, err
	}
	dispatches := make([]Dispatch, 0, len(facts))
	for _, fact := range facts {
		lang := fact.Language
		if !slices.Contains(p.cfg.Niche.TargetLanguages, lang) {
			lang = "en"
		}
		dispatches = append(dispatches, Dispatch{
			Task:     TaskGenerateArticle,
			Payload:  FactPayload{FactID: fact.ID, Lang: lang},
			DedupKey: fmt.Sprintf("fact:%d:%s", fact.ID, lang),
		})
	}
	return dispatches, nil
}

func (p *pipeline) generateArticle(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Generator == nil {
		return unconfigured(TaskGenerateArticle)
	}
	payload, err := decodePayload[FactPayload](TaskGenerateArticle, raw)
	if err != nil {
		return stage.Reject("invalid payload", err)
	}
	if payload.FactID <= 0 {
		return invalidPayload(TaskGenerateArticle, "fact_id is required")
	}
	lang := payload.Lang
	if lang == "" {
		lang = "en"
	}
	return p.stages.Generator.GenerateArticle(ctx, payload.FactID, lang)
}

func (p *pipeline) afterArticle(_ json.RawMessage, outcome stage.Outcome) []Dispatch {
	if outcome.Kind != stage.SuccessNew || outcome.EntityID == 0 {
		return nil
	}
	return []Dispatch{
		contentDispatch(TaskGenerateImages, outcome.EntityID),
		contentDispatch(TaskGenerateVideo, outcome.EntityID),
		contentDispatch(TaskMonetize, outcome.EntityID),
	}
}

func contentDispatch(task string, id int64) Dispatch {
	return Dispatch{Task: task, Payload: ContentPayload{ContentID: id}, DedupKey: fmt.Sprintf("content:%d", id)}
}

func contentRun(task string, run func(context.Context, int64) stage.Outcome) RunFunc {
	return func(ctx context.Context, raw json.RawMessage) stage.Outcome {
		payload, err := decodePayload[ContentPayload](task, raw)
		if err != nil {
			return stage.Reject("invalid payload", err)
		}
		if payload.ContentID <= 0 {
			return invalidPayload(task, "content_id is required")
		}
		return run(services.WithEntityID(ctx, payload.ContentID), payload.ContentID)
	}
}

func (p *pipeline) generateImages(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Generator == nil {
		return unconfigured(TaskGenerateImages)
	}
	return contentRun(TaskGenerateImages, p.stages.Generator.GenerateImages)(ctx, raw)
}

func (p *pipeline) generateVideo(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Generator == nil {
		return unconfigured(TaskGenerateVideo)
	}
	return contentRun(TaskGenerateVideo, p.stages.Generator.GenerateVideo)(ctx, raw)
}

func (p *pipeline) monetize(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Injector == nil {
		return unconfigured(TaskMonetize)
	}
	return contentRun(TaskMonetize, p.stages.Injector.Inject)(ctx, raw)
}

func (p *pipeline) afterMonetize(raw json.RawMessage, outcome stage.Outcome) []Dispatch {
	if !outcome.Succeeded() {
		return nil
	}
	payload, err := decodePayload[ContentPayload](TaskMonetize, raw)
	if err != nil || payload.ContentID <= 0 {
		return nil
	}
	return []Dispatch{contentDispatch(TaskOptimizeSEO, payload.ContentID)}
}

func (p *pipeline) optimizeSEO(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Optimizer == nil {
		return unconfigured(TaskOptimizeSEO)
	}
	return contentRun(TaskOptimizeSEO, p.stages.Optimizer.OptimizeSEO)(ctx, raw)
}

// afterSEO publishes whether or not SEO succeeded: publishing needs SEO to
// have been attempted, not to have produced metadata.
func (p *pipeline) afterSEO(raw json.RawMessage, outcome stage.Outcome) []Dispatch {
	if outcome.Kind == stage.Transient {
		return nil
	}
	payload, err := decodePayload[ContentPayload](TaskOptimizeSEO, raw)
	if err != nil || payload.ContentID <= 0 {
		return nil
	}
	return p.publishDispatches(payload.ContentID)
}

func (p *pipeline) publishDispatches(contentID int64) []Dispatch {
	dispatches := make([]Dispatch, 0, len(p.cfg.Publishing.Platforms))
	for _, name := range p.cfg.Publishing.Platforms {
		platform, ok := store.ParsePlatform(name)
		if !ok {
			continue
		}
		dispatches = append(dispatches, Dispatch{
			Task:     TaskPublish,
			Payload:  PublishPayload{ContentID: contentID, Platform: string(platform)},
			DedupKey: fmt.Sprintf("content:%d:%s", contentID, platform),
		})
	}
	return dispatches
}

// publishReady sweeps content the chain did not carry to publication. Items
// touched within the last publish interval are left for the chain so an
// article is not published before monetization finishes.
func (p *pipeline) publishReady(ctx context.Context, _ json.RawMessage) ([]Dispatch, error) {
	items, err := p.store.ContentReadyForPublish(ctx, p.cfg.Publishing.BatchSize)
	if err != nil {
		return nil, err
	}
	settle := time.Duration(p.cfg.Scheduler.Intervals.PublishReady) * time.Second
	cutoff := p.now().Add(-settle)
	var dispatches []Dispatch
	for _, item := range items {
		if settle > 0 && item.UpdatedAt.After(cutoff) {
			continue
		}
		dispatches = append(dispatches, p.publishDispatches(item.ID)...)
	}
	return dispatches, nil
}

func (p *pipeline) publish(ctx context.Context, raw json.RawMessage) stage.Outcome {
	if p.stages.Publisher == nil {
		return unconfigured(TaskPublish)
	}
	payload, err := decodePayload[PublishPayload](TaskPublish, raw)
	if err != nil {
		return stage.Reject("invalid payload", err)
	}
	if payload.ContentID <= 0 || strings.TrimSpace(payload.Platform) == "" {
		return invalidPayload(TaskPublish, "content_id and platform are required")
	}
	return p.stages.Publisher.Publish(services.WithEntityID(ctx, payload.ContentID), payload.ContentID, payload.Platform)
}

func (p *pipeline) collectMetrics(ctx context.Context, _ json.RawMessage) stage.Outcome {
	if p.stages.Collector == nil {
		return unconfigured(TaskCollectMetrics)
	}
	return p.stages.Collector.CollectMetrics(ctx)
}

func (p *pipeline) afterCollect(_ json.RawMessage, outcome stage.Outcome) []Dispatch {
	if !outcome.Succeeded() {
		return nil
	}
	return []Dispatch{{Task: TaskAnalyze, DedupKey: TaskAnalyze}}
}

func (p *pipeline) analyze(ctx context.Context, _ json.RawMessage) stage.Outcome {
	if p.stages.Analyzer == nil {
		return unconfigured(TaskAnalyze)
	}
	return p.stages.Analyzer.Analyze(ctx)
}
