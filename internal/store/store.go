package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"alchemist/internal/config"
)

// Store manages pipeline persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps and task eligibility.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed width so lexical order matches chronological order.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Open initializes or connects to the database at cfg.DatabasePath().
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), opts...)
}

// OpenPath opens the database file at dbPath.
func OpenPath(dbPath string, opts ...Option) (*Store, error) {
	// Pragmas travel in the DSN so every pooled connection receives them.
	pragmas := []string{
		"busy_timeout(5000)",
		"journal_mode(WAL)",
		"foreign_keys(1)",
	}
	dsn := "file:" + dbPath + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db %q: %w", dbPath, err)
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, mapWriteError(err)
	}
	return res, nil
}

func (s *Store) execBuilder(ctx context.Context, builder sq.Sqlizer) (sql.Result, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return s.execWithRetry(ctx, query, args...)
}

// inTx runs fn in one transaction. A busy database retries the whole
// transaction; any error from fn rolls it back.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func txExec(ctx context.Context, tx *sql.Tx, builder sq.Sqlizer) (sql.Result, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return res, nil
}

func txInsert(ctx context.Context, tx *sql.Tx, builder sq.InsertBuilder) (int64, error) {
	res, err := txExec(ctx, tx, builder)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// requireAffected fails the enclosing transaction when res touched no row.
func requireAffected(res sql.Result, cause error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return cause
	}
	return nil
}

func (s *Store) insert(ctx context.Context, builder sq.InsertBuilder) (int64, error) {
	res, err := s.execBuilder(ctx, builder)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *Store) queryBuilder(ctx context.Context, builder sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	ctx = ensureContext(ctx)
	var rows *sql.Rows
	err = retryOnBusy(ctx, func() error {
		var qerr error
		rows, qerr = s.db.QueryContext(ctx, query, args...)
		return qerr
	})
	return rows, err
}

func (s *Store) exists(ctx context.Context, table, column string, value any) (bool, error) {
	ctx = ensureContext(ctx)
	query := "SELECT EXISTS(SELECT 1 FROM " + table + " WHERE " + column + " = ?)"
	var found int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, value).Scan(&found)
	})
	if err != nil {
		return false, fmt.Errorf("check %s.%s: %w", table, column, err)
	}
	return found == 1, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func applyWindow(b sq.SelectBuilder, column string, since time.Time, limit int) sq.SelectBuilder {
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{column: formatTime(since)})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func encodeJSON(value any, empty string) (string, error) {
	if value == nil {
		return empty, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func decodeJSON(raw sql.NullString, target any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), target); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
