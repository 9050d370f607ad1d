package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alchemist/internal/dedup"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

// Publisher sends content to configured platform targets.
type Publisher struct {
	store    *store.Store
	targets  map[store.Platform]Target
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithTarget registers the target for a platform.
func WithTarget(platform store.Platform, target Target) PublisherOption {
	return func(p *Publisher) {
		if target != nil {
			p.targets[platform] = target
		}
	}
}

// WithNotifier sends EventContentPublished after each successful publish.
func WithNotifier(notifier notifications.Service) PublisherOption {
	return func(p *Publisher) { p.notifier = notifier }
}

// NewPublisher constructs the publish stage.
func NewPublisher(st *store.Store, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:   st,
		targets: map[store.Platform]Target{},
		logger:  logging.NewComponentLogger(logger, "publisher"),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// HasTarget reports whether a client is registered for platform.
func (p *Publisher) HasTarget(platform store.Platform) bool {
	if p == nil {
		return false
	}
	_, ok := p.targets[platform]
	return ok
}

// Publish sends content to platform once. A retryable target failure leaves
// the content status alone so the scheduler can try again; a deterministic
// rejection moves the content to ERROR_PUBLISH.
func (p *Publisher) Publish(ctx context.Context, contentID int64, platform string) stage.Outcome {
	if p == nil || p.store == nil {
		return stage.Reject("publisher not configured",
			services.Wrap(services.ErrConfiguration, "publish", "init", "store is required", nil))
	}
	ctx = services.WithEntityID(ctx, contentID)
	logger := logging.WithContext(ctx, p.logger).With(logging.Platform(platform))

	target, tag, ok := p.resolve(platform)
	if !ok {
		return stage.Reject("unknown platform",
			services.Wrap(services.ErrValidation, "publish", "platform", fmt.Sprintf("platform %q is not supported", platform), nil))
	}

	existing, err := p.store.PublishedFor(ctx, contentID, tag)
	if err != nil {
		return stage.Retry("check published", err)
	}
	if existing != nil {
		// A crash between the insert and the status update leaves the row
		// behind; finish the transition here.
		if err := p.store.SetContentStatus(ctx, contentID, store.ContentPublished, ""); err != nil &&
			!errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrNotFound) {
			return stage.Retry("mark published", err)
		}
		return stage.NoWork(existing.ID, "already published: "+existing.ExternalURL)
	}

	content, err := p.store.GetContent(ctx, contentID)
	if err != nil {
		return stage.Retry("load content", err)
	}
	if content == nil {
		return stage.Reject("content missing",
			services.Wrap(services.ErrNotFound, "publish", "load", fmt.Sprintf("content %d does not exist", contentID), nil))
	}
	switch content.Status {
	case store.ContentGenerated, store.ContentMonetized, store.ContentPublished:
	default:
		return stage.Reject("content not publishable",
			services.Wrap(services.ErrValidation, "publish", "status", fmt.Sprintf("content %d is %s", contentID, content.Status), nil))
	}
	if target == nil {
		return stage.Reject("platform not configured",
			services.Wrap(services.ErrConfiguration, "publish", "platform", fmt.Sprintf("no target configured for %s", tag), nil))
	}

	seo := seoFromMetadata(content.Metadata)
	post := Post{
		Title:           content.Title,
		Body:            content.Body,
		Language:        content.Language,
		Keywords:        content.Keywords,
		MetaTitle:       seo.MetaTitle,
		MetaDescription: seo.MetaDescription,
	}
	if len(content.ImagePaths) > 0 {
		media, err := target.UploadAsset(ctx, content.ImagePaths[0])
		if err != nil {
			logging.WarnWithContext(logger, "featured image upload failed", "featured_image_failed",
				logging.Error(err),
				logging.String("path", content.ImagePaths[0]),
				logging.String(logging.FieldErrorHint, "check media upload permissions on the target"),
				logging.String(logging.FieldImpact, "post is published without a featured image"),
			)
		} else {
			post.FeaturedMedia = media
		}
	}

	result, err := target.Publish(ctx, post)
	if err != nil {
		if errors.Is(err, context.Canceled) || services.Retryable(err) {
			return stage.Retry("publish", err)
		}
		if markErr := p.store.SetContentStatus(ctx, contentID, store.ContentErrorPublish, err.Error()); markErr != nil {
			logger.Warn("could not record publish failure", logging.Error(markErr))
		}
		logging.ErrorWithContext(logger, "publish rejected", "publish_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the platform credentials and post payload"),
		)
		return stage.Reject("publish rejected", err)
	}

	if result.URL == "" {
		ref := result.ExternalID
		if ref == "" {
			ref = fmt.Sprint(contentID)
		}
		result.URL = fmt.Sprintf("%s:%s", strings.ToLower(string(tag)), ref)
	}
	record, err := p.store.InsertPublished(ctx, &store.Published{
		ContentID:   contentID,
		Platform:    tag,
		ExternalURL: result.URL,
		ExternalID:  result.ExternalID,
		PublishedAt: p.now(),
	})
	if err != nil {
		if dedup.IsDuplicate(err) {
			return stage.NoWork(contentID, "already published")
		}
		return stage.Retry("record publish", err)
	}
	if err := p.store.SetContentStatus(ctx, contentID, store.ContentPublished, ""); err != nil {
		return stage.Retry("mark published", err)
	}
	logger.Info("content published", logging.URL(result.URL), logging.PublishedID(record.ID))
	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, notifications.EventContentPublished, notifications.Payload{
			"platform": string(tag),
			"title":    content.Title,
			"url":      result.URL,
		}); err != nil {
			logger.Debug("publish notification failed", logging.Error(err))
		}
	}
	return stage.New(record.ID, "published "+result.URL)
}

func (p *Publisher) resolve(platform string) (Target, store.Platform, bool) {
	tag, ok := store.ParsePlatform(platform)
	if !ok {
		return nil, "", false
	}
	return p.targets[tag], tag, true
}
