package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	AssetsDir   string `toml:"assets_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	SourcesFile string `toml:"sources_file"`
}

// Niche describes the topic the pipeline writes about.
type Niche struct {
	Topic               string   `toml:"topic"`
	TargetLanguages     []string `toml:"target_languages"`
	ContentVolumePerDay int      `toml:"content_volume_per_day"`
}

// LLM contains the chat completion and embedding endpoint settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	EmbeddingsURL  string  `toml:"embeddings_url"`
	Model          string  `toml:"model"`
	EmbeddingModel string  `toml:"embedding_model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// Scrape contains fetcher settings.
type Scrape struct {
	UserAgent      string `toml:"user_agent"`
	Proxy          string `toml:"proxy"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTextChars   int    `toml:"max_text_chars"`
	RawBatchSize   int    `toml:"raw_batch_size"`
}

// Generation contains article generation and quality gate settings.
type Generation struct {
	MinArticleWords    int      `toml:"min_article_words"`
	BoilerplatePhrases []string `toml:"boilerplate_phrases"`
	RequireKeywords    bool     `toml:"require_keywords"`
	MaxTokens          int      `toml:"max_tokens"`
	Temperature        float64  `toml:"temperature"`
}

// Images contains image generation settings.
type Images struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	Steps          int    `toml:"steps"`
	MaxImages      int    `toml:"max_images"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Video contains narration and video assembly settings.
type Video struct {
	Enabled        bool              `toml:"enabled"`
	SpeechURL      string            `toml:"speech_url"`
	SpeechAPIKey   string            `toml:"speech_api_key"`
	FFmpegBinary   string            `toml:"ffmpeg_binary"`
	Frames         int               `toml:"frames"`
	Width          int               `toml:"width"`
	Height         int               `toml:"height"`
	Steps          int               `toml:"steps"`
	FPS            int               `toml:"fps"`
	Voices         map[string]string `toml:"voices"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
}

// Monetization contains ad and affiliate injection settings.
type Monetization struct {
	AdClientID            string `toml:"ad_client_id"`
	AdSlotID              string `toml:"ad_slot_id"`
	AdEveryParagraphs     int    `toml:"ad_every_paragraphs"`
	AffiliateTag          string `toml:"affiliate_tag"`
	AffiliateProductsFile string `toml:"affiliate_products_file"`
}

// WordPress contains the CMS publishing target credentials.
type WordPress struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	AppPassword    string `toml:"app_password"`
	CategoryIDs    []int  `toml:"category_ids"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Publishing contains publish stage settings.
type Publishing struct {
	Platforms []string  `toml:"platforms"`
	BatchSize int       `toml:"batch_size"`
	WordPress WordPress `toml:"wordpress"`
}

// Metrics contains feedback loop settings.
type Metrics struct {
	SourceURL      string `toml:"source_url"`
	APIKey         string `toml:"api_key"`
	BatchSize      int    `toml:"batch_size"`
	WindowDays     int    `toml:"window_days"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// JitterRange bounds the random delay between fan-out dispatches, in seconds.
type JitterRange struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

// Intervals holds the periodic trigger cadence in seconds.
type Intervals struct {
	DiscoverSources   int `toml:"discover_sources"`
	ProcessUnparsed   int `toml:"process_unparsed"`
	TriggerGeneration int `toml:"trigger_generation"`
	PublishReady      int `toml:"publish_ready"`
	CollectMetrics    int `toml:"collect_metrics"`
}

// Scheduler contains worker pool, retry, and periodic trigger settings.
type Scheduler struct {
	Workers           int                    `toml:"workers"`
	PollInterval      int                    `toml:"poll_interval"`
	HeartbeatInterval int                    `toml:"heartbeat_interval"`
	HeartbeatTimeout  int                    `toml:"heartbeat_timeout"`
	MaxAttempts       int                    `toml:"max_attempts"`
	BackoffLow        int                    `toml:"backoff_low"`
	BackoffMedium     int                    `toml:"backoff_medium"`
	BackoffHigh       int                    `toml:"backoff_high"`
	MaxBackoff        int                    `toml:"max_backoff"`
	Intervals         Intervals              `toml:"intervals"`
	Jitter            map[string]JitterRange `toml:"jitter"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Published      bool   `toml:"published"`
	Directives     bool   `toml:"directives"`
}

// Config encapsulates all configuration values for Alchemist.
//
// Configuration sections by subsystem:
//   - Paths: data, assets, log, and state directories plus the sources file
//   - Niche: topic, target languages, and daily content volume
//   - LLM: chat completion and embedding endpoints
//   - Scrape: fetcher user agent, proxy, and batch size
//   - Generation: article quality gate
//   - Images, Video: optional enhancement stages
//   - Monetization: ad units and affiliate links
//   - Publishing: platforms and WordPress credentials
//   - Metrics: performance feedback source and window
//   - Scheduler: workers, retry backoff, and periodic triggers
//   - Logging, Notifications: operator visibility
type Config struct {
	Paths         Paths         `toml:"paths"`
	Niche         Niche         `toml:"niche"`
	LLM           LLM           `toml:"llm"`
	Scrape        Scrape        `toml:"scrape"`
	Generation    Generation    `toml:"generation"`
	Images        Images        `toml:"images"`
	Video         Video         `toml:"video"`
	Monetization  Monetization  `toml:"monetization"`
	Publishing    Publishing    `toml:"publishing"`
	Metrics       Metrics       `toml:"metrics"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if value, ok := os.LookupEnv("ALCHEMIST_CONFIG"); ok {
			path = strings.TrimSpace(value)
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("alchemist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AssetsDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, databaseFileName)
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, lockFileName)
}

// ImagesDir returns the directory that holds generated images for one content item.
func (c *Config) ImagesDir(contentID int64) string {
	return filepath.Join(c.Paths.AssetsDir, "images", fmt.Sprint(contentID))
}

// AudioDir returns the directory that holds narration audio for one content item.
func (c *Config) AudioDir(contentID int64) string {
	return filepath.Join(c.Paths.AssetsDir, "audio", fmt.Sprint(contentID))
}

// VideosDir returns the directory that holds assembled videos for one content item.
func (c *Config) VideosDir(contentID int64) string {
	return filepath.Join(c.Paths.AssetsDir, "videos", fmt.Sprint(contentID))
}

// VideoFramesDir returns the directory that holds rendered video frames for one content item.
func (c *Config) VideoFramesDir(contentID int64) string {
	return filepath.Join(c.Paths.AssetsDir, "video_frames", fmt.Sprint(contentID))
}

// FFmpegBinary returns the ffmpeg executable used for video assembly.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Video.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// VoiceFor returns the narration voice configured for a language.
func (c *Config) VoiceFor(lang string) string {
	if voice, ok := c.Video.Voices[strings.ToLower(strings.TrimSpace(lang))]; ok && voice != "" {
		return voice
	}
	return defaultVoice
}

// PollDuration returns the worker idle poll interval.
func (s Scheduler) PollDuration() time.Duration {
	return time.Duration(s.PollInterval) * time.Second
}

// HeartbeatEvery returns the heartbeat interval as a duration.
func (s Scheduler) HeartbeatEvery() time.Duration {
	return time.Duration(s.HeartbeatInterval) * time.Second
}

// HeartbeatDeadline returns the stale-task reclaim threshold as a duration.
func (s Scheduler) HeartbeatDeadline() time.Duration {
	return time.Duration(s.HeartbeatTimeout) * time.Second
}

// JitterFor returns the dispatch jitter range for a fan-out task.
func (s Scheduler) JitterFor(task string) JitterRange {
	if r, ok := s.Jitter[task]; ok {
		return r
	}
	return JitterRange{}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
