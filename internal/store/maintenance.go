package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats counts rows per status for every status-bearing table, keyed by table name.
func (s *Store) Stats(ctx context.Context) (map[string]map[string]int, error) {
	ctx = ensureContext(ctx)
	out := make(map[string]map[string]int, 4)
	for _, table := range []string{"raw_data", "generated_content", "directives", "task_runs"} {
		counts, err := s.groupCount(ctx, `SELECT status, COUNT(1) FROM `+table+` GROUP BY status`)
		if err != nil {
			return nil, fmt.Errorf("%s stats: %w", table, err)
		}
		out[table] = counts
	}
	facts, err := s.groupCount(ctx,
		`SELECT CASE processed WHEN 1 THEN 'processed' ELSE 'pending' END, COUNT(1) FROM structured_facts GROUP BY processed`)
	if err != nil {
		return nil, fmt.Errorf("structured_facts stats: %w", err)
	}
	out["structured_facts"] = facts
	published, err := s.groupCount(ctx, `SELECT platform, COUNT(1) FROM published_content GROUP BY platform`)
	if err != nil {
		return nil, fmt.Errorf("published_content stats: %w", err)
	}
	out["published_content"] = published
	return out, nil
}

func (s *Store) groupCount(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// DatabaseHealth describes the on-disk database for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	RowCounts        map[string]int
	IntegrityCheck   bool
	Error            string
}

// Health returns diagnostic information about the database.
func (s *Store) Health(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path, RowCounts: make(map[string]int)}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	for _, table := range expectedTables {
		var present int
		if err := s.db.QueryRowContext(connCtx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&present); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
		if present == 0 {
			health.MissingTables = append(health.MissingTables, table)
			continue
		}
		var count int
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM "+table).Scan(&count); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count %s: %w", table, err)
		}
		health.RowCounts[table] = count
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
