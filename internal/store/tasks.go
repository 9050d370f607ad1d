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
)

const taskColumns = "id, task, payload_json, dedup_key, status, attempts, max_attempts, not_before, last_error, correlation_id, parent_id, heartbeat_at, started_at, finished_at, created_at, updated_at"

// DefaultMaxAttempts applies when a NewTask leaves MaxAttempts unset.
const DefaultMaxAttempts = 3

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Tasks    []string
	Statuses []TaskStatus
	// Exhausted restricts FAILED_RETRYABLE matches to runs out of attempts.
	Exhausted bool
	Limit     int
}

// TaskSummary counts task runs by scheduler state.
type TaskSummary struct {
	Queued     int
	Running    int
	Succeeded  int
	Retrying   int
	Exhausted  int
	Terminal   int
	OldestDue  *time.Time
	TotalCount int
}

// EnqueueTask inserts a QUEUED run. When DedupKey is set and an active run
// (QUEUED, RUNNING, or FAILED_RETRYABLE) with the same task and key exists,
// ErrDuplicate is returned.
func (s *Store) EnqueueTask(ctx context.Context, task NewTask) (*TaskRun, error) {
	name := strings.TrimSpace(task.Task)
	if name == "" {
		return nil, errors.New("task name is required")
	}
	payload, err := encodeJSON(task.Payload, "{}")
	if err != nil {
		return nil, err
	}
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	notBefore := task.NotBefore
	if notBefore.IsZero() {
		notBefore = s.now()
	}
	now := s.timestamp()
	id, err := s.insert(ctx, sq.Insert("task_runs").
		Columns("task", "payload_json", "dedup_key", "status", "attempts", "max_attempts", "not_before",
			"correlation_id", "parent_id", "created_at", "updated_at").
		Values(name, payload, nullableString(task.DedupKey), TaskQueued, 0, maxAttempts, formatTime(notBefore),
			nullableString(task.CorrelationID), nullableInt(task.ParentID), now, now))
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return s.GetTask(ctx, id)
}

// ClaimNextTask moves the oldest eligible run to RUNNING and increments its
// attempt counter. Retryable runs whose backoff elapsed and that still have
// attempts left are promoted back to QUEUED first. It returns nil when no run
// is due.
func (s *Store) ClaimNextTask(ctx context.Context) (*TaskRun, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	if _, err := s.execWithRetry(ctx,
		`UPDATE task_runs SET status = ?, updated_at = ?
         WHERE status = ? AND attempts < max_attempts AND not_before <= ?`,
		TaskQueued, now, TaskFailedRetryable, now,
	); err != nil {
		return nil, fmt.Errorf("promote retryable tasks: %w", err)
	}

	query := `UPDATE task_runs
        SET status = ?, attempts = attempts + 1, started_at = ?, heartbeat_at = ?,
            finished_at = NULL, updated_at = ?
        WHERE id = (
            SELECT id FROM task_runs
            WHERE status = ? AND not_before <= ?
            ORDER BY not_before, id
            LIMIT 1
        )
        RETURNING ` + taskColumns
	var run *TaskRun
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		run, scanErr = scanTask(s.db.QueryRowContext(ctx, query, TaskRunning, now, now, now, TaskQueued, now))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return run, nil
}

// CompleteTask marks a RUNNING run SUCCEEDED.
func (s *Store) CompleteTask(ctx context.Context, id int64, note string) error {
	now := s.timestamp()
	res, err := s.execBuilder(ctx, sq.Update("task_runs").
		Set("status", TaskSucceeded).
		Set("last_error", nullableString(note)).
		Set("finished_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": TaskRunning}))
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return s.checkAffected(ctx, res, "task_runs", id)
}

// FailTaskRetryable marks a RUNNING run FAILED_RETRYABLE, eligible again at
// notBefore while attempts remain. The updated run is returned so callers can
// detect exhaustion.
func (s *Store) FailTaskRetryable(ctx context.Context, id int64, notBefore time.Time, reason string) (*TaskRun, error) {
	return s.finishRun(ctx, id, TaskFailedRetryable, &notBefore, reason)
}

// FailTaskTerminal marks a RUNNING run FAILED_TERMINAL; it is never claimed again.
func (s *Store) FailTaskTerminal(ctx context.Context, id int64, reason string) (*TaskRun, error) {
	return s.finishRun(ctx, id, TaskFailedTerminal, nil, reason)
}

func (s *Store) finishRun(ctx context.Context, id int64, status TaskStatus, notBefore *time.Time, reason string) (*TaskRun, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	args := []any{status, nullableString(reason), now, now}
	setNotBefore := ""
	if notBefore != nil {
		setNotBefore = ", not_before = ?"
		args = append(args, formatTime(*notBefore))
	}
	args = append(args, id, TaskRunning)
	query := `UPDATE task_runs SET status = ?, last_error = ?, finished_at = ?, updated_at = ?` + setNotBefore +
		` WHERE id = ? AND status = ? RETURNING ` + taskColumns

	var run *TaskRun
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		run, scanErr = scanTask(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		found, existsErr := s.exists(ctx, "task_runs", "id", id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !found {
			return nil, fmt.Errorf("task run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("task run %d is not running: %w", id, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("finish task: %w", mapWriteError(err))
	}
	return run, nil
}

// RetryTasks resets terminal and exhausted runs to QUEUED with a fresh
// attempt budget. With no ids every such run is reset.
func (s *Store) RetryTasks(ctx context.Context, ids ...int64) (int64, error) {
	now := s.timestamp()
	builder := sq.Update("task_runs").
		Set("status", TaskQueued).
		Set("attempts", 0).
		Set("not_before", now).
		Set("last_error", nil).
		Set("heartbeat_at", nil).
		Set("finished_at", nil).
		Set("updated_at", now).
		Where(sq.Or{
			sq.Eq{"status": TaskFailedTerminal},
			sq.And{sq.Eq{"status": TaskFailedRetryable}, sq.Expr("attempts >= max_attempts")},
		})
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	res, err := s.execBuilder(ctx, builder)
	if err != nil {
		return 0, fmt.Errorf("retry tasks: %w", err)
	}
	return res.RowsAffected()
}

// UpdateTaskHeartbeat refreshes the heartbeat of a RUNNING run.
func (s *Store) UpdateTaskHeartbeat(ctx context.Context, id int64) error {
	now := s.timestamp()
	if _, err := s.execBuilder(ctx, sq.Update("task_runs").
		Set("heartbeat_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": TaskRunning})); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleTasks returns RUNNING runs whose heartbeat is older than cutoff
// to FAILED_RETRYABLE and reports the reclaimed rows. The interrupted attempt
// still counts, so a reclaimed run may come back exhausted.
func (s *Store) ReclaimStaleTasks(ctx context.Context, cutoff time.Time) ([]*TaskRun, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	query := `UPDATE task_runs
        SET status = ?, last_error = ?, not_before = ?, finished_at = ?, updated_at = ?
        WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)
        RETURNING ` + taskColumns
	var runs []*TaskRun
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query,
			TaskFailedRetryable, "reclaimed after heartbeat timeout", now, now, now,
			TaskRunning, formatTime(cutoff))
		if err != nil {
			return err
		}
		runs, err = collect(rows, scanTask)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return runs, nil
}

// ReleaseTask returns a RUNNING run cut short by shutdown to FAILED_RETRYABLE,
// due now, and gives back the attempt ClaimNextTask charged for it.
func (s *Store) ReleaseTask(ctx context.Context, id int64, reason string) (*TaskRun, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	query := `UPDATE task_runs
        SET status = ?, attempts = MAX(attempts - 1, 0), last_error = ?, not_before = ?,
            finished_at = ?, updated_at = ?
        WHERE id = ? AND status = ?
        RETURNING ` + taskColumns
	var run *TaskRun
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		run, scanErr = scanTask(s.db.QueryRowContext(ctx, query,
			TaskFailedRetryable, nullableString(reason), now, now, now, id, TaskRunning))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task run %d is not running: %w", id, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("release task: %w", err)
	}
	return run, nil
}

// CloseExhaustedTasks moves exhausted runs of task with dedupKey to
// FAILED_TERMINAL so they stop holding the active dedup slot. It reports how
// many runs were closed.
func (s *Store) CloseExhaustedTasks(ctx context.Context, task, dedupKey string) (int64, error) {
	now := s.timestamp()
	res, err := s.execBuilder(ctx, sq.Update("task_runs").
		Set("status", TaskFailedTerminal).
		Set("last_error", sq.Expr("COALESCE(last_error || '; ', '') || 'superseded by a newer run'")).
		Set("updated_at", now).
		Where(sq.Eq{"task": task, "dedup_key": dedupKey, "status": TaskFailedRetryable}).
		Where("attempts >= max_attempts"))
	if err != nil {
		return 0, fmt.Errorf("close exhausted tasks: %w", err)
	}
	return res.RowsAffected()
}

// GetTask fetches a task run by identifier; it returns nil when absent.
func (s *Store) GetTask(ctx context.Context, id int64) (*TaskRun, error) {
	rows, err := s.queryBuilder(ctx, sq.Select(taskColumns).From("task_runs").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	runs, err := collect(rows, scanTask)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListTasks lists runs matching filter, oldest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*TaskRun, error) {
	builder := sq.Select(taskColumns).From("task_runs").OrderBy("created_at", "id")
	if len(filter.Tasks) > 0 {
		builder = builder.Where(sq.Eq{"task": filter.Tasks})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": toStrings(filter.Statuses)})
	}
	if filter.Exhausted {
		builder = builder.Where(sq.Eq{"status": TaskFailedRetryable}).Where("attempts >= max_attempts")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collect(rows, scanTask)
}

// TaskStats summarizes the task queue.
func (s *Store) TaskStats(ctx context.Context) (TaskSummary, error) {
	rows, err := s.queryBuilder(ctx, sq.Select(
		"status",
		"CASE WHEN status = 'FAILED_RETRYABLE' AND attempts >= max_attempts THEN 1 ELSE 0 END AS exhausted",
		"COUNT(1)",
	).From("task_runs").GroupBy("status", "exhausted"))
	if err != nil {
		return TaskSummary{}, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	var summary TaskSummary
	for rows.Next() {
		var (
			status    string
			exhausted int
			count     int
		)
		if err := rows.Scan(&status, &exhausted, &count); err != nil {
			return TaskSummary{}, fmt.Errorf("scan task stats: %w", err)
		}
		summary.TotalCount += count
		switch TaskStatus(status) {
		case TaskQueued:
			summary.Queued += count
		case TaskRunning:
			summary.Running += count
		case TaskSucceeded:
			summary.Succeeded += count
		case TaskFailedRetryable:
			if exhausted == 1 {
				summary.Exhausted += count
			} else {
				summary.Retrying += count
			}
		case TaskFailedTerminal:
			summary.Terminal += count
		}
	}
	if err := rows.Err(); err != nil {
		return TaskSummary{}, err
	}

	var oldest sql.NullString
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT MIN(not_before) FROM task_runs WHERE status = ?`, TaskQueued,
	).Scan(&oldest); err != nil {
		return TaskSummary{}, fmt.Errorf("oldest due task: %w", err)
	}
	summary.OldestDue = parseNullTime(oldest)
	return summary, nil
}

func scanTask(row scanner) (*TaskRun, error) {
	var (
		run         TaskRun
		payload     sql.NullString
		dedupKey    sql.NullString
		status      string
		notBefore   string
		lastError   sql.NullString
		correlation sql.NullString
		parentID    sql.NullInt64
		heartbeat   sql.NullString
		started     sql.NullString
		finished    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(&run.ID, &run.Task, &payload, &dedupKey, &status, &run.Attempts, &run.MaxAttempts,
		&notBefore, &lastError, &correlation, &parentID, &heartbeat, &started, &finished,
		&createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		run.Payload = json.RawMessage(payload.String)
	} else {
		run.Payload = json.RawMessage("{}")
	}
	run.DedupKey = dedupKey.String
	run.Status = TaskStatus(status)
	run.NotBefore = parseTime(notBefore)
	run.LastError = lastError.String
	run.CorrelationID = correlation.String
	run.ParentID = parentID.Int64
	run.HeartbeatAt = parseNullTime(heartbeat)
	run.StartedAt = parseNullTime(started)
	run.FinishedAt = parseNullTime(finished)
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	return &run, nil
}
