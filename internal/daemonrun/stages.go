package daemonrun

import (
	"fmt"
	"log/slog"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/distribution"
	"alchemist/internal/feedback"
	"alchemist/internal/generation"
	"alchemist/internal/ingest"
	"alchemist/internal/logging"
	"alchemist/internal/monetize"
	"alchemist/internal/notifications"
	"alchemist/internal/services/analytics"
	"alchemist/internal/services/feeds"
	"alchemist/internal/services/fetch"
	"alchemist/internal/services/imagegen"
	"alchemist/internal/services/llm"
	"alchemist/internal/services/speech"
	"alchemist/internal/services/video"
	"alchemist/internal/services/wordpress"
	"alchemist/internal/store"
	"alchemist/internal/workflow"
)

// BuildStages constructs the external service clients and wraps them in the
// stage implementations the pipeline runs. Optional services that are not
// configured are left out; their stages report SuccessNoWork or reject with a
// configuration error.
func BuildStages(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) (workflow.Stages, error) {
	fetcher, err := fetch.NewClient(fetch.Config{
		UserAgent:      cfg.Scrape.UserAgent,
		Proxy:          cfg.Scrape.Proxy,
		TimeoutSeconds: cfg.Scrape.TimeoutSeconds,
	})
	if err != nil {
		return workflow.Stages{}, err
	}

	model := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		EmbeddingsURL:  cfg.LLM.EmbeddingsURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	var genOpts []generation.Option
	if cfg.Images.Enabled || cfg.Video.Enabled {
		genOpts = append(genOpts, generation.WithImageGenerator(imagegen.NewClient(imagegen.Config{
			BaseURL:        cfg.Images.BaseURL,
			APIKey:         cfg.Images.APIKey,
			TimeoutSeconds: cfg.Images.TimeoutSeconds,
		})))
	}
	if cfg.Video.Enabled {
		genOpts = append(genOpts,
			generation.WithSpeechSynthesizer(speech.NewClient(speech.Config{
				URL:            cfg.Video.SpeechURL,
				APIKey:         cfg.Video.SpeechAPIKey,
				TimeoutSeconds: cfg.Video.TimeoutSeconds,
			}, nil)),
			generation.WithVideoAssembler(video.NewAssembler(cfg.FFmpegBinary(), cfg.Video.FPS, cfg.Video.Width, cfg.Video.Height)),
		)
	}

	products, err := monetize.LoadProducts(cfg.Monetization.AffiliateProductsFile)
	if err != nil {
		return workflow.Stages{}, fmt.Errorf("load affiliate products: %w", err)
	}

	publisherOpts := []distribution.PublisherOption{distribution.WithNotifier(notifier)}
	for _, tag := range cfg.Publishing.Platforms {
		platform, _ := store.ParsePlatform(tag)
		switch platform {
		case store.PlatformWordPress:
			wp := cfg.Publishing.WordPress
			if strings.TrimSpace(wp.URL) == "" {
				logging.WarnWithContext(logger, "wordpress publishing not configured", "platform_unconfigured",
					logging.Platform(tag),
					logging.String(logging.FieldErrorHint, "set publishing.wordpress.url, username, and app_password"),
					logging.String(logging.FieldImpact, "publish runs for this platform fail terminally"),
				)
				continue
			}
			publisherOpts = append(publisherOpts, distribution.WithTarget(platform, wordpress.NewClient(wordpress.Config{
				URL:            wp.URL,
				Username:       wp.Username,
				AppPassword:    wp.AppPassword,
				CategoryIDs:    wp.CategoryIDs,
				TimeoutSeconds: wp.TimeoutSeconds,
			})))
		default:
			logging.WarnWithContext(logger, "no publishing client for platform", "platform_unsupported",
				logging.Platform(tag),
				logging.String(logging.FieldErrorHint, "remove the platform from publishing.platforms"),
				logging.String(logging.FieldImpact, "publish runs for this platform fail terminally"),
			)
		}
	}

	var source feedback.MetricsSource
	if strings.TrimSpace(cfg.Metrics.SourceURL) != "" {
		source = analytics.NewClient(analytics.Config{
			SourceURL:      cfg.Metrics.SourceURL,
			APIKey:         cfg.Metrics.APIKey,
			TimeoutSeconds: cfg.Metrics.TimeoutSeconds,
		})
	}

	return workflow.Stages{
		Discoverer: feeds.NewDiscoverer(cfg.Paths.SourcesFile, fetcher, logger),
		Scraper:    ingest.NewScraper(cfg, st, fetcher, logger),
		Parser:     ingest.NewParser(cfg, st, model, model, logger),
		Generator:  generation.NewGenerator(cfg, st, model, logger, genOpts...),
		Injector:   monetize.NewInjector(cfg, st, logger, monetize.WithProducts(products)),
		Optimizer:  distribution.NewOptimizer(cfg, st, model, logger),
		Publisher:  distribution.NewPublisher(st, logger, publisherOpts...),
		Collector:  feedback.NewCollector(cfg, st, source, logger),
		Analyzer:   feedback.NewAnalyzer(cfg, st, model, logger, feedback.WithNotifier(notifier)),
	}, nil
}
