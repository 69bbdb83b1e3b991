package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AppendLog adds a line to the job's log.
func (s *Store) AppendLog(ctx context.Context, jobID int64, level LogLevel, kind, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO job_logs (job_id, level, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, level, nullableString(kind), message, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Logs returns a job's log in insertion order.
func (s *Store) Logs(ctx context.Context, jobID int64) ([]LogEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, level, kind, message, created_at FROM job_logs WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) attachLogs(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[int64]*Job, len(jobs))
	args := make([]any, 0, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
		args = append(args, job.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, level, kind, message, created_at FROM job_logs
        WHERE job_id IN (`+makePlaceholders(len(args))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return fmt.Errorf("scan log: %w", err)
		}
		if job := byID[entry.JobID]; job != nil {
			job.Log = append(job.Log, entry)
		}
	}
	return rows.Err()
}

func insertLog(ctx context.Context, tx *sql.Tx, jobID int64, level LogLevel, kind, message, timestamp string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	if level == "" {
		level = LogInfo
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO job_logs (job_id, level, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, level, nullableString(kind), message, timestamp,
	)
	return err
}
