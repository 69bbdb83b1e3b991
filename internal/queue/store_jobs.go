package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stillcut/internal/services"
)

// Enqueue persists a queued job together with its initial log lines.
func (s *Store) Enqueue(ctx context.Context, job NewJob) (*Job, error) {
	ctx = ensureContext(ctx)
	if len(job.Groups) == 0 {
		return nil, services.Wrap(services.ErrEmptyInput, "queue", "enqueue", "job has no groups", nil)
	}
	groups := make([]Group, len(job.Groups))
	for i, g := range job.Groups {
		g.Index = i
		if g.Status == "" {
			g.Status = GroupPending
		}
		groups[i] = g
	}
	groupsJSON, err := encodeGroups(groups)
	if err != nil {
		return nil, err
	}
	onExisting := job.OnExisting
	if onExisting == "" {
		onExisting = "error"
	}
	timestamp := formatTime(time.Now())

	var id int64
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (
                images_dir, audio_dir, out_dir, group_mode, on_existing, status,
                groups_json, group_count, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ImagesDir,
			job.AudioDir,
			job.OutDir,
			job.GroupMode,
			onExisting,
			StatusQueued,
			groupsJSON,
			len(groups),
			timestamp,
			timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, entry := range job.Log {
			if err := insertLog(ctx, tx, id, entry.Level, entry.Kind, entry.Message, timestamp); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job with its log. A missing job returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	logs, err := s.Logs(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Log = logs
	return job, nil
}

// List returns jobs in FIFO order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	_ = rows.Close()

	if err := s.attachLogs(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// NextQueued returns the oldest queued job, or nil when none is waiting.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// MarkRunning moves a queued job to running. Only one caller can win.
func (s *Store) MarkRunning(ctx context.Context, id int64) error {
	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ?,
            current_group = 0, group_percent = 0, progress_percent = 0, progress_message = NULL
        WHERE id = ? AND status = ?`,
		StatusRunning, timestamp, timestamp, id, StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrNotQueued)
	}
	return nil
}

// UpdateProgress records the worker's position within a running job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, progress Progress) error {
	err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET current_group = ?, group_percent = ?, progress_percent = ?,
            progress_message = ?, updated_at = ?
        WHERE id = ? AND status = ?`,
		progress.CurrentGroup,
		clampPercent(progress.GroupPercent),
		clampPercent(progress.Percent),
		nullableString(progress.Message),
		formatTime(time.Now()),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// SaveGroups persists per-group outcomes and the running counters.
func (s *Store) SaveGroups(ctx context.Context, id int64, groups []Group, succeeded, failed int) error {
	groupsJSON, err := encodeGroups(groups)
	if err != nil {
		return err
	}
	err = s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET groups_json = ?, succeeded_groups = ?, failed_groups = ?, updated_at = ?
        WHERE id = ?`,
		groupsJSON, succeeded, failed, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	return nil
}

// Finish moves a running job to a terminal status.
func (s *Store) Finish(ctx context.Context, id int64, status Status, errorMessage string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish job %d: %q is not a terminal status", id, status)
	}
	timestamp := formatTime(time.Now())
	progress := 100.0
	if status == StatusFailed {
		progress = -1
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?,
            progress_percent = CASE WHEN ? < 0 THEN progress_percent ELSE ? END,
            group_percent = 0, progress_message = NULL
        WHERE id = ? AND status = ?`,
		status, nullableString(strings.TrimSpace(errorMessage)), timestamp, timestamp,
		progress, progress,
		id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish job %d: job is not running", id)
	}
	return nil
}

// Remove deletes a job that has not started yet.
func (s *Store) Remove(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ? AND status = ?`, id, StatusQueued)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if affected > 0 {
		return nil
	}
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "queue", "remove", fmt.Sprintf("job %d not found", id), nil)
	}
	return services.Wrap(services.ErrValidation, "queue", "remove",
		fmt.Sprintf("job %d is %s", id, job.Status.Label()), ErrNotRemovable)
}

func clampPercent(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
