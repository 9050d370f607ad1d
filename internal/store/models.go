package store

import (
	"encoding/json"
	"strings"
	"time"
)

// RawStatus tracks a scraped page through parsing.
type RawStatus string

const (
	RawNew             RawStatus = "NEW"
	RawParsed          RawStatus = "PARSED"
	RawFailedParsing   RawStatus = "FAILED_PARSING"
	RawFailedJSON      RawStatus = "FAILED_JSON"
	RawFailedEmbedding RawStatus = "FAILED_EMBEDDING"
	RawDuplicateParsed RawStatus = "DUPLICATE_PARSED"
)

// ContentStatus is the forward-only lifecycle of generated content.
type ContentStatus string

const (
	ContentGenerated         ContentStatus = "GENERATED"
	ContentMonetized         ContentStatus = "MONETIZED"
	ContentPublished         ContentStatus = "PUBLISHED"
	ContentErrorGeneration   ContentStatus = "ERROR_GENERATION"
	ContentErrorMonetization ContentStatus = "ERROR_MONETIZATION"
	ContentErrorPublish      ContentStatus = "ERROR_PUBLISH"
)

var contentStatuses = []ContentStatus{
	ContentGenerated,
	ContentMonetized,
	ContentPublished,
	ContentErrorGeneration,
	ContentErrorMonetization,
	ContentErrorPublish,
}

var contentRank = map[ContentStatus]int{
	ContentGenerated: 1,
	ContentMonetized: 2,
	ContentPublished: 3,
}

// IsError reports whether the status is one of the ERROR_* sinks.
func (s ContentStatus) IsError() bool {
	return strings.HasPrefix(string(s), "ERROR_")
}

// CanTransition reports whether content may move from one status to another.
// Rewriting the same status is allowed. ERROR_* states are sinks and
// PUBLISHED can no longer fail.
func CanTransition(from, to ContentStatus) bool {
	if from == to {
		return true
	}
	if from.IsError() {
		return false
	}
	if to.IsError() {
		return from != ContentPublished
	}
	fromRank, okFrom := contentRank[from]
	toRank, okTo := contentRank[to]
	return okFrom && okTo && toRank > fromRank
}

func predecessors(to ContentStatus) []string {
	out := make([]string, 0, len(contentStatuses))
	for _, from := range contentStatuses {
		if CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// ContentType classifies generated content.
type ContentType string

const (
	TypeArticle     ContentType = "ARTICLE"
	TypeGuide       ContentType = "GUIDE"
	TypeFAQ         ContentType = "FAQ"
	TypeVideoScript ContentType = "VIDEO_SCRIPT"
)

// Platform identifies a publishing target.
type Platform string

const (
	PlatformWordPress Platform = "WORDPRESS"
	PlatformYouTube   Platform = "YOUTUBE"
	PlatformTwitter   Platform = "TWITTER"
)

// ParsePlatform normalizes a platform tag; ok is false for unknown tags.
func ParsePlatform(value string) (Platform, bool) {
	switch p := Platform(strings.ToUpper(strings.TrimSpace(value))); p {
	case PlatformWordPress, PlatformYouTube, PlatformTwitter:
		return p, true
	default:
		return "", false
	}
}

// MetricType names a performance measurement.
type MetricType string

const (
	MetricViews      MetricType = "VIEWS"
	MetricClicks     MetricType = "CLICKS"
	MetricRevenueUSD MetricType = "REVENUE_USD"
	MetricBounceRate MetricType = "BOUNCE_RATE"
)

// DirectiveStatus tracks operator handling of an analyzer directive.
type DirectiveStatus string

const (
	DirectivePending      DirectiveStatus = "PENDING"
	DirectiveAcknowledged DirectiveStatus = "ACKNOWLEDGED"
	DirectiveDismissed    DirectiveStatus = "DISMISSED"
)

// TaskStatus is the scheduler state of a task run.
type TaskStatus string

const (
	TaskQueued          TaskStatus = "QUEUED"
	TaskRunning         TaskStatus = "RUNNING"
	TaskSucceeded       TaskStatus = "SUCCEEDED"
	TaskFailedRetryable TaskStatus = "FAILED_RETRYABLE"
	TaskFailedTerminal  TaskStatus = "FAILED_TERMINAL"
)

// RawDatum is one scraped source page.
type RawDatum struct {
	ID        int64
	SourceURL string
	Payload   string
	Status    RawStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fact is a structured extraction of a raw page.
type Fact struct {
	ID            int64
	RawID         int64
	SourceURL     string
	Category      string
	Language      string
	Data          map[string]any
	Embedding     []float64
	EmbeddingHash string
	Processed     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Content is a generated article, guide, or script plus its assets.
type Content struct {
	ID          int64
	FactID      int64
	ContentHash string
	Title       string
	Body        string
	Language    string
	Type        ContentType
	Keywords    []string
	ImagePaths  []string
	AudioPath   string
	VideoPath   string
	Metadata    map[string]any
	Status      ContentStatus
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Published records one successful publish of content to a platform.
type Published struct {
	ID          int64
	ContentID   int64
	Platform    Platform
	ExternalURL string
	ExternalID  string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// Metric is one append-only performance sample.
type Metric struct {
	ID          int64
	PublishedID int64
	Type        MetricType
	Value       float64
	RecordedAt  time.Time
	CreatedAt   time.Time
}

// MetricAverage aggregates samples of one type for one content item.
type MetricAverage struct {
	ContentID int64
	Title     string
	Type      MetricType
	Average   float64
	Samples   int
}

// Directive is an analyzer recommendation awaiting a human or automated consumer.
type Directive struct {
	ID        int64
	Agent     string
	Action    string
	Params    map[string]any
	Reason    string
	Status    DirectiveStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskRun is one scheduled invocation of a named task.
type TaskRun struct {
	ID            int64
	Task          string
	Payload       json.RawMessage
	DedupKey      string
	Status        TaskStatus
	Attempts      int
	MaxAttempts   int
	NotBefore     time.Time
	LastError     string
	CorrelationID string
	ParentID      int64
	HeartbeatAt   *time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Exhausted reports whether a retryable run has used every attempt.
func (t *TaskRun) Exhausted() bool {
	return t != nil && t.Status == TaskFailedRetryable && t.Attempts >= t.MaxAttempts
}

// NewTask describes a run to enqueue.
type NewTask struct {
	Task          string
	Payload       any
	DedupKey      string
	MaxAttempts   int
	NotBefore     time.Time
	CorrelationID string
	ParentID      int64
}
