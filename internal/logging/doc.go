// Package logging assembles structured slog loggers and formatting helpers used
// across Alchemist.
//
// It owns the console and JSON handlers, per-stage level overrides, and
// context-aware helpers so stage code tags log lines with task names, task run
// ids, entity ids, and correlation ids. The daemon logger tees the console
// stream into a JSON file under paths.log_dir; CleanupOldLogs prunes that
// directory on start up.
package logging
