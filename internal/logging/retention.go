package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs removes files in dir matching pattern whose modification time
// is older than retentionDays. The active log file named by keep is never
// removed. A retentionDays value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, dir, pattern string, retentionDays int, keep ...string) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	exclusions := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			exclusions[abs] = struct{}{}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
				continue
			}
		}
		fullPath, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, skip := exclusions[fullPath]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
