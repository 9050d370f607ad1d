package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNiche()
	c.normalizeLLM()
	c.normalizeScrape()
	c.normalizeMedia()
	if err := c.normalizeMonetization(); err != nil {
		return err
	}
	c.normalizePublishing()
	c.normalizeMetrics()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.SourcesFile, err = expandPath(strings.TrimSpace(c.Paths.SourcesFile)); err != nil {
		return fmt.Errorf("paths.sources_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeNiche() {
	c.Niche.Topic = strings.TrimSpace(c.Niche.Topic)
	if c.Niche.Topic == "" {
		c.Niche.Topic = defaultNicheTopic
	}
	langs := make([]string, 0, len(c.Niche.TargetLanguages))
	seen := make(map[string]struct{}, len(c.Niche.TargetLanguages))
	for _, lang := range c.Niche.TargetLanguages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.Niche.TargetLanguages = langs
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = strings.TrimSpace(value)
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.EmbeddingsURL = strings.TrimSpace(c.LLM.EmbeddingsURL)
	if c.LLM.EmbeddingsURL == "" {
		c.LLM.EmbeddingsURL = defaultLLMEmbeddingsURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.EmbeddingModel = strings.TrimSpace(c.LLM.EmbeddingModel)
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = defaultLLMEmbeddingModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
}

func (c *Config) normalizeScrape() {
	c.Scrape.UserAgent = strings.TrimSpace(c.Scrape.UserAgent)
	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = defaultScrapeUserAgent
	}
	c.Scrape.Proxy = strings.TrimSpace(c.Scrape.Proxy)
	if c.Scrape.Proxy == "" {
		if value, ok := os.LookupEnv("ALCHEMIST_PROXY"); ok {
			c.Scrape.Proxy = strings.TrimSpace(value)
		}
	}
	if c.Scrape.MaxTextChars <= 0 {
		c.Scrape.MaxTextChars = defaultScrapeMaxTextChars
	}
}

func (c *Config) normalizeMedia() {
	c.Images.BaseURL = strings.TrimSpace(c.Images.BaseURL)
	c.Images.APIKey = strings.TrimSpace(c.Images.APIKey)
	if c.Images.APIKey == "" {
		if value, ok := os.LookupEnv("STABILITY_API_KEY"); ok {
			c.Images.APIKey = strings.TrimSpace(value)
		}
	}
	c.Video.SpeechURL = strings.TrimSpace(c.Video.SpeechURL)
	c.Video.SpeechAPIKey = strings.TrimSpace(c.Video.SpeechAPIKey)
	if c.Video.SpeechAPIKey == "" {
		if value, ok := os.LookupEnv("TTS_API_KEY"); ok {
			c.Video.SpeechAPIKey = strings.TrimSpace(value)
		}
	}
	if len(c.Video.Voices) > 0 {
		voices := make(map[string]string, len(c.Video.Voices))
		for lang, voice := range c.Video.Voices {
			voices[strings.ToLower(strings.TrimSpace(lang))] = strings.TrimSpace(voice)
		}
		c.Video.Voices = voices
	}
}

func (c *Config) normalizeMonetization() error {
	c.Monetization.AdClientID = strings.TrimSpace(c.Monetization.AdClientID)
	c.Monetization.AdSlotID = strings.TrimSpace(c.Monetization.AdSlotID)
	c.Monetization.AffiliateTag = strings.TrimSpace(c.Monetization.AffiliateTag)
	if c.Monetization.AdEveryParagraphs <= 0 {
		c.Monetization.AdEveryParagraphs = defaultAdEveryParagraphs
	}
	var err error
	if c.Monetization.AffiliateProductsFile, err = expandPath(strings.TrimSpace(c.Monetization.AffiliateProductsFile)); err != nil {
		return fmt.Errorf("monetization.affiliate_products_file: %w", err)
	}
	return nil
}

func (c *Config) normalizePublishing() {
	platforms := make([]string, 0, len(c.Publishing.Platforms))
	for _, platform := range c.Publishing.Platforms {
		normalized := strings.ToUpper(strings.TrimSpace(platform))
		if normalized != "" {
			platforms = append(platforms, normalized)
		}
	}
	c.Publishing.Platforms = platforms
	wp := &c.Publishing.WordPress
	wp.URL = strings.TrimRight(strings.TrimSpace(wp.URL), "/")
	wp.Username = strings.TrimSpace(wp.Username)
	wp.AppPassword = strings.TrimSpace(wp.AppPassword)
	if wp.AppPassword == "" {
		if value, ok := os.LookupEnv("WORDPRESS_APP_PASSWORD"); ok {
			wp.AppPassword = strings.TrimSpace(value)
		}
	}
	if len(wp.CategoryIDs) == 0 {
		wp.CategoryIDs = []int{1}
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.SourceURL = strings.TrimSpace(c.Metrics.SourceURL)
	c.Metrics.APIKey = strings.TrimSpace(c.Metrics.APIKey)
	if c.Metrics.APIKey == "" {
		if value, ok := os.LookupEnv("ANALYTICS_API_KEY"); ok {
			c.Metrics.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			key := strings.ToLower(strings.TrimSpace(stage))
			value := strings.ToLower(strings.TrimSpace(level))
			if key == "" || value == "" {
				continue
			}
			overrides[key] = value
		}
		c.Logging.StageOverrides = overrides
	}
}
