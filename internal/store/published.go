package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const publishedColumns = "id, content_id, platform, external_url, external_id, published_at, created_at"

// PublishedFilter narrows QueryPublished.
type PublishedFilter struct {
	ContentID int64
	Platform  Platform
	Since     time.Time
	Limit     int
}

// InsertPublished records a successful publish. A second row for the same
// (content, platform) pair or external URL returns ErrDuplicate. Published
// rows are immutable.
func (s *Store) InsertPublished(ctx context.Context, published *Published) (*Published, error) {
	if published == nil {
		return nil, errors.New("published record is nil")
	}
	if strings.TrimSpace(published.ExternalURL) == "" {
		return nil, errors.New("external url is required")
	}
	publishedAt := published.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = s.now()
	}
	id, err := s.insert(ctx, sq.Insert("published_content").
		Columns("content_id", "platform", "external_url", "external_id", "published_at", "created_at").
		Values(published.ContentID, published.Platform, strings.TrimSpace(published.ExternalURL),
			nullableString(published.ExternalID), formatTime(publishedAt), s.timestamp()))
	if err != nil {
		return nil, fmt.Errorf("insert published: %w", err)
	}
	return s.GetPublished(ctx, id)
}

// GetPublished fetches a published row by identifier; it returns nil when absent.
func (s *Store) GetPublished(ctx context.Context, id int64) (*Published, error) {
	items, err := s.QueryPublished(ctx, PublishedFilter{}, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// PublishedFor returns the publish record for a (content, platform) pair, or nil.
func (s *Store) PublishedFor(ctx context.Context, contentID int64, platform Platform) (*Published, error) {
	items, err := s.QueryPublished(ctx, PublishedFilter{ContentID: contentID, Platform: platform, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// QueryPublished lists published rows oldest first.
func (s *Store) QueryPublished(ctx context.Context, filter PublishedFilter, ids ...int64) ([]*Published, error) {
	builder := sq.Select(publishedColumns).From("published_content").OrderBy("created_at", "id")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	if filter.ContentID > 0 {
		builder = builder.Where(sq.Eq{"content_id": filter.ContentID})
	}
	if filter.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": filter.Platform})
	}
	builder = applyWindow(builder, "published_at", filter.Since, filter.Limit)
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query published: %w", err)
	}
	return collect(rows, scanPublished)
}

// PublishedForMetrics returns up to limit published rows, oldest first.
func (s *Store) PublishedForMetrics(ctx context.Context, limit int) ([]*Published, error) {
	return s.QueryPublished(ctx, PublishedFilter{Limit: limit})
}

func scanPublished(row scanner) (*Published, error) {
	var (
		published    Published
		platform     string
		externalID   sql.NullString
		publishedRaw string
		createdRaw   string
	)
	if err := row.Scan(&published.ID, &published.ContentID, &platform, &published.ExternalURL,
		&externalID, &publishedRaw, &createdRaw); err != nil {
		return nil, fmt.Errorf("scan published: %w", err)
	}
	published.Platform = Platform(platform)
	published.ExternalID = externalID.String
	published.PublishedAt = parseTime(publishedRaw)
	published.CreatedAt = parseTime(createdRaw)
	return &published, nil
}
