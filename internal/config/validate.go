package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedPlatforms = map[string]struct{}{
	"WORDPRESS": {},
	"YOUTUBE":   {},
	"TWITTER":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNiche(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNiche() error {
	if c.Niche.ContentVolumePerDay <= 0 {
		return errors.New("niche.content_volume_per_day must be positive")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.MinArticleWords <= 0 {
		return errors.New("generation.min_article_words must be positive")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"generation.max_tokens":  c.Generation.MaxTokens,
		"llm.timeout_seconds":    c.LLM.TimeoutSeconds,
		"scrape.timeout_seconds": c.Scrape.TimeoutSeconds,
		"scrape.raw_batch_size":  c.Scrape.RawBatchSize,
	})
}

func (c *Config) validateMedia() error {
	if c.Images.Enabled {
		if c.Images.BaseURL == "" {
			return errors.New("images.base_url must be set when images.enabled is true")
		}
		if err := ensurePositiveMap(map[string]int{
			"images.width":      c.Images.Width,
			"images.height":     c.Images.Height,
			"images.steps":      c.Images.Steps,
			"images.max_images": c.Images.MaxImages,
		}); err != nil {
			return err
		}
	}
	if c.Video.Enabled {
		if c.Video.SpeechURL == "" {
			return errors.New("video.speech_url must be set when video.enabled is true")
		}
		if !c.Images.Enabled {
			return errors.New("video.enabled requires images.enabled for frame generation")
		}
		if err := ensurePositiveMap(map[string]int{
			"video.frames": c.Video.Frames,
			"video.width":  c.Video.Width,
			"video.height": c.Video.Height,
			"video.steps":  c.Video.Steps,
			"video.fps":    c.Video.FPS,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePublishing() error {
	for _, platform := range c.Publishing.Platforms {
		if _, ok := supportedPlatforms[platform]; !ok {
			return fmt.Errorf("publishing.platforms: unsupported platform %q", platform)
		}
	}
	if c.Publishing.BatchSize <= 0 {
		return errors.New("publishing.batch_size must be positive")
	}
	wp := c.Publishing.WordPress
	if wp.URL != "" {
		if !strings.HasPrefix(wp.URL, "http://") && !strings.HasPrefix(wp.URL, "https://") {
			return errors.New("publishing.wordpress.url must start with http:// or https://")
		}
		if wp.Username == "" || wp.AppPassword == "" {
			return errors.New("publishing.wordpress.username and app_password must be set when publishing.wordpress.url is set (or set WORDPRESS_APP_PASSWORD)")
		}
	}
	if c.Metrics.BatchSize <= 0 {
		return errors.New("metrics.batch_size must be positive")
	}
	if c.Metrics.WindowDays <= 0 {
		return errors.New("metrics.window_days must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if err := ensurePositiveMap(map[string]int{
		"scheduler.workers":                      s.Workers,
		"scheduler.poll_interval":                s.PollInterval,
		"scheduler.max_attempts":                 s.MaxAttempts,
		"scheduler.intervals.discover_sources":   s.Intervals.DiscoverSources,
		"scheduler.intervals.process_unparsed":   s.Intervals.ProcessUnparsed,
		"scheduler.intervals.trigger_generation": s.Intervals.TriggerGeneration,
		"scheduler.intervals.publish_ready":      s.Intervals.PublishReady,
		"scheduler.intervals.collect_metrics":    s.Intervals.CollectMetrics,
		"notifications.request_timeout":          c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if s.HeartbeatInterval <= 0 {
		return errors.New("scheduler.heartbeat_interval must be positive")
	}
	if s.HeartbeatTimeout <= s.HeartbeatInterval {
		return errors.New("scheduler.heartbeat_timeout must be greater than scheduler.heartbeat_interval")
	}
	if s.BackoffLow < 0 || s.BackoffMedium < 0 || s.BackoffHigh < 0 {
		return errors.New("scheduler backoff values must be >= 0")
	}
	if s.BackoffLow > s.BackoffMedium || s.BackoffMedium > s.BackoffHigh {
		return errors.New("scheduler backoff must not decrease with criticality (low <= medium <= high)")
	}
	if s.MaxBackoff < s.BackoffHigh {
		return errors.New("scheduler.max_backoff must be >= scheduler.backoff_high")
	}
	for task, r := range s.Jitter {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("scheduler.jitter.%s must satisfy 0 <= min <= max", task)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	for stage, level := range c.Logging.StageOverrides {
		if !validLevel(level) {
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
