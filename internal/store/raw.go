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

const rawColumns = "id, source_url, payload, status, error_message, created_at, updated_at"

// RawFilter narrows QueryRaw.
type RawFilter struct {
	Statuses []RawStatus
	Since    time.Time
	Limit    int
}

// InsertRaw stores a newly scraped page with status NEW. A known URL returns ErrDuplicate.
func (s *Store) InsertRaw(ctx context.Context, sourceURL, payload string) (*RawDatum, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, errors.New("source url is required")
	}
	now := s.timestamp()
	id, err := s.insert(ctx, sq.Insert("raw_data").
		Columns("source_url", "payload", "status", "created_at", "updated_at").
		Values(sourceURL, payload, RawNew, now, now))
	if err != nil {
		return nil, fmt.Errorf("insert raw: %w", err)
	}
	return s.GetRaw(ctx, id)
}

// UpdateRaw persists status and error changes. A row may leave NEW at most
// once; RequeueRaw is the explicit way back.
func (s *Store) UpdateRaw(ctx context.Context, raw *RawDatum) error {
	if raw == nil {
		return errors.New("raw datum is nil")
	}
	builder := sq.Update("raw_data").
		Set("payload", raw.Payload).
		Set("status", raw.Status).
		Set("error_message", nullableString(raw.Error)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": raw.ID})
	if raw.Status != RawNew {
		builder = builder.Where(sq.Or{sq.Eq{"status": RawNew}, sq.Eq{"status": raw.Status}})
	} else {
		builder = builder.Where(sq.Eq{"status": RawNew})
	}
	res, err := s.execBuilder(ctx, builder)
	if err != nil {
		return fmt.Errorf("update raw: %w", err)
	}
	return s.checkAffected(ctx, res, "raw_data", raw.ID)
}

// SetRawStatus moves a NEW raw row to status, recording message.
func (s *Store) SetRawStatus(ctx context.Context, id int64, status RawStatus, message string) error {
	raw, err := s.GetRaw(ctx, id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("raw %d: %w", id, ErrNotFound)
	}
	raw.Status = status
	raw.Error = message
	return s.UpdateRaw(ctx, raw)
}

// RequeueRaw resets a failed raw row to NEW so it is parsed again.
func (s *Store) RequeueRaw(ctx context.Context, id int64) error {
	res, err := s.execBuilder(ctx, sq.Update("raw_data").
		Set("status", RawNew).
		Set("error_message", nil).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []string{string(RawFailedParsing), string(RawFailedJSON), string(RawFailedEmbedding)}}))
	if err != nil {
		return fmt.Errorf("requeue raw: %w", err)
	}
	return s.checkAffected(ctx, res, "raw_data", id)
}

// GetRaw fetches a raw row by identifier; it returns nil when absent.
func (s *Store) GetRaw(ctx context.Context, id int64) (*RawDatum, error) {
	rows, err := s.QueryRaw(ctx, RawFilter{}, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// QueryRaw lists raw rows oldest first. When ids are given only those rows are returned.
func (s *Store) QueryRaw(ctx context.Context, filter RawFilter, ids ...int64) ([]*RawDatum, error) {
	builder := sq.Select(rawColumns).From("raw_data").OrderBy("created_at", "id")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": toStrings(filter.Statuses)})
	}
	builder = applyWindow(builder, "created_at", filter.Since, filter.Limit)
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query raw: %w", err)
	}
	return collect(rows, scanRaw)
}

// URLExists reports whether a page with sourceURL was already scraped.
func (s *Store) URLExists(ctx context.Context, sourceURL string) (bool, error) {
	return s.exists(ctx, "raw_data", "source_url", strings.TrimSpace(sourceURL))
}

// UnprocessedRaw returns up to limit NEW raw rows, oldest first.
func (s *Store) UnprocessedRaw(ctx context.Context, limit int) ([]*RawDatum, error) {
	return s.QueryRaw(ctx, RawFilter{Statuses: []RawStatus{RawNew}, Limit: limit})
}

func scanRaw(row scanner) (*RawDatum, error) {
	var (
		raw        RawDatum
		status     string
		errMessage sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&raw.ID, &raw.SourceURL, &raw.Payload, &status, &errMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, fmt.Errorf("scan raw: %w", err)
	}
	raw.Status = RawStatus(status)
	raw.Error = errMessage.String
	raw.CreatedAt = parseTime(createdRaw)
	raw.UpdatedAt = parseTime(updatedRaw)
	return &raw, nil
}

// checkAffected turns a zero-row update into ErrNotFound or ErrInvalidTransition.
func (s *Store) checkAffected(ctx context.Context, res sql.Result, table string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	found, err := s.exists(ctx, table, "id", id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", table, id, ErrInvalidTransition)
}
