package queue

import (
	"context"
	"fmt"
	"time"

	"stillcut/internal/services"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClearHistory deletes finished jobs and their logs. Queued and running jobs
// are kept.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	terminal := TerminalStatuses()
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE status IN (`+makePlaceholders(len(terminal))+`)`,
		statusArgs(terminal)...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// FailInterrupted marks jobs left running by a previous worker as failed and
// records reason in their logs. It returns the affected job IDs.
func (s *Store) FailInterrupted(ctx context.Context, reason string) ([]int64, error) {
	ctx = ensureContext(ctx)
	if reason == "" {
		reason = InterruptedReason
	}
	var ids []int64
	err := retryOnBusy(ctx, func() error {
		ids = ids[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, `SELECT id FROM jobs WHERE status = ? ORDER BY id`, StatusRunning)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()
		if len(ids) == 0 {
			return nil
		}

		timestamp := formatTime(time.Now())
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?,
                    group_percent = 0, progress_message = NULL
                WHERE id = ?`,
				StatusFailed, reason, timestamp, timestamp, id,
			); err != nil {
				return err
			}
			if err := insertLog(ctx, tx, id, LogError, string(services.KindTransient), reason, timestamp); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return ids, nil
}
