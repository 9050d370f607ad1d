package config

const (
	defaultConfigPath           = "~/.config/alchemist/config.toml"
	defaultDataDir              = "~/.local/share/alchemist"
	defaultAssetsDir            = "~/.local/share/alchemist/content_assets"
	defaultLogDir               = "~/.local/share/alchemist/logs"
	defaultStateDir             = "~/.local/state/alchemist"
	databaseFileName            = "alchemist.db"
	lockFileName                = "alchemist.lock"
	defaultNicheTopic           = "solar water pumps for Indian farmers"
	defaultContentVolumePerDay  = 10
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMEmbeddingsURL     = "https://openrouter.ai/api/v1/embeddings"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMEmbeddingModel    = "openai/text-embedding-3-small"
	defaultLLMReferer           = "https://github.com/alchemist-pipeline/alchemist"
	defaultLLMTitle             = "Alchemist"
	defaultLLMTimeoutSeconds    = 90
	defaultLLMMaxTokens         = 2048
	defaultLLMTemperature       = 0.2
	defaultScrapeUserAgent      = "Mozilla/5.0 (compatible; AlchemistBot/1.0)"
	defaultScrapeTimeout        = 30
	defaultScrapeMaxTextChars   = 15000
	defaultRawBatchSize         = 50
	defaultMinArticleWords      = 500
	defaultGenerationMaxTokens  = 4096
	defaultGenerationTemp       = 0.7
	defaultImageWidth           = 768
	defaultImageHeight          = 768
	defaultImageSteps           = 50
	defaultMaxImages            = 3
	defaultVideoFrames          = 4
	defaultVideoWidth           = 1024
	defaultVideoHeight          = 576
	defaultVideoSteps           = 30
	defaultVideoFPS             = 24
	defaultVoice                = "en-IN-Wavenet-D"
	defaultMediaTimeoutSeconds  = 300
	defaultAdEveryParagraphs    = 3
	defaultPublishBatchSize     = 5
	defaultWordPressTimeout     = 60
	defaultMetricsBatchSize     = 100
	defaultMetricsWindowDays    = 7
	defaultMetricsTimeout       = 30
	defaultWorkers              = 4
	defaultPollInterval         = 5
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 600
	defaultMaxAttempts          = 3
	defaultBackoffLow           = 300
	defaultBackoffMedium        = 600
	defaultBackoffHigh          = 3600
	defaultMaxBackoff           = 6 * 3600
	defaultDiscoverInterval     = 24 * 3600
	defaultUnparsedInterval     = 3 * 3600
	defaultGenerationInterval   = 3600
	defaultPublishInterval      = 3600
	defaultMetricsInterval      = 24 * 3600
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultNotifyRequestTimeout = 10
)

var defaultBoilerplatePhrases = []string{
	"I cannot fulfill that request",
	"As an AI language model",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			AssetsDir: defaultAssetsDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Niche: Niche{
			Topic:               defaultNicheTopic,
			TargetLanguages:     []string{"hi", "en"},
			ContentVolumePerDay: defaultContentVolumePerDay,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			EmbeddingsURL:  defaultLLMEmbeddingsURL,
			Model:          defaultLLMModel,
			EmbeddingModel: defaultLLMEmbeddingModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
		},
		Scrape: Scrape{
			UserAgent:      defaultScrapeUserAgent,
			TimeoutSeconds: defaultScrapeTimeout,
			MaxTextChars:   defaultScrapeMaxTextChars,
			RawBatchSize:   defaultRawBatchSize,
		},
		Generation: Generation{
			MinArticleWords:    defaultMinArticleWords,
			BoilerplatePhrases: append([]string(nil), defaultBoilerplatePhrases...),
			MaxTokens:          defaultGenerationMaxTokens,
			Temperature:        defaultGenerationTemp,
		},
		Images: Images{
			Width:          defaultImageWidth,
			Height:         defaultImageHeight,
			Steps:          defaultImageSteps,
			MaxImages:      defaultMaxImages,
			TimeoutSeconds: defaultMediaTimeoutSeconds,
		},
		Video: Video{
			Frames: defaultVideoFrames,
			Width:  defaultVideoWidth,
			Height: defaultVideoHeight,
			Steps:  defaultVideoSteps,
			FPS:    defaultVideoFPS,
			Voices: map[string]string{
				"en": defaultVoice,
				"hi": "hi-IN-Wavenet-A",
			},
			TimeoutSeconds: defaultMediaTimeoutSeconds,
		},
		Monetization: Monetization{
			AdEveryParagraphs: defaultAdEveryParagraphs,
		},
		Publishing: Publishing{
			Platforms: []string{"WORDPRESS"},
			BatchSize: defaultPublishBatchSize,
			WordPress: WordPress{
				CategoryIDs:    []int{1},
				TimeoutSeconds: defaultWordPressTimeout,
			},
		},
		Metrics: Metrics{
			BatchSize:      defaultMetricsBatchSize,
			WindowDays:     defaultMetricsWindowDays,
			TimeoutSeconds: defaultMetricsTimeout,
		},
		Scheduler: Scheduler{
			Workers:           defaultWorkers,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			MaxAttempts:       defaultMaxAttempts,
			BackoffLow:        defaultBackoffLow,
			BackoffMedium:     defaultBackoffMedium,
			BackoffHigh:       defaultBackoffHigh,
			MaxBackoff:        defaultMaxBackoff,
			Intervals: Intervals{
				DiscoverSources:   defaultDiscoverInterval,
				ProcessUnparsed:   defaultUnparsedInterval,
				TriggerGeneration: defaultGenerationInterval,
				PublishReady:      defaultPublishInterval,
				CollectMetrics:    defaultMetricsInterval,
			},
			Jitter: map[string]JitterRange{
				"discover_sources":   {Min: 0.5, Max: 2.0},
				"process_unparsed":   {Min: 0.1, Max: 0.5},
				"trigger_generation": {Min: 1, Max: 5},
				"publish_ready":      {Min: 1, Max: 5},
			},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Errors:         true,
			Published:      true,
			Directives:     true,
		},
	}
}
