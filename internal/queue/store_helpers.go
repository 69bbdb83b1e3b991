package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, images_dir, audio_dir, out_dir, group_mode, on_existing, status, groups_json, current_group, group_percent, progress_percent, progress_message, succeeded_groups, failed_groups, error_message, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		imagesDir       string
		audioDir        string
		outDir          string
		groupMode       string
		onExisting      sql.NullString
		statusStr       string
		groupsJSON      sql.NullString
		currentGroup    sql.NullInt64
		groupPercent    sql.NullFloat64
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		succeeded       sql.NullInt64
		failed          sql.NullInt64
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&imagesDir,
		&audioDir,
		&outDir,
		&groupMode,
		&onExisting,
		&statusStr,
		&groupsJSON,
		&currentGroup,
		&groupPercent,
		&progressPercent,
		&progressMessage,
		&succeeded,
		&failed,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		ImagesDir:       imagesDir,
		AudioDir:        audioDir,
		OutDir:          outDir,
		GroupMode:       groupMode,
		OnExisting:      onExisting.String,
		Status:          Status(statusStr),
		CurrentGroup:    int(currentGroup.Int64),
		GroupPercent:    groupPercent.Float64,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		SucceededGroups: int(succeeded.Int64),
		FailedGroups:    int(failed.Int64),
		ErrorMessage:    errorMessage.String,
	}
	groups, err := decodeGroups(groupsJSON.String)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", id, err)
	}
	job.Groups = groups

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseOptionalTime(startedRaw)
	job.FinishedAt = parseOptionalTime(finishedRaw)
	return job, nil
}

func scanLogEntry(scanner interface{ Scan(dest ...any) error }) (LogEntry, error) {
	var (
		entry      LogEntry
		level      string
		kind       sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &entry.JobID, &level, &kind, &entry.Message, &createdRaw); err != nil {
		return LogEntry{}, err
	}
	entry.Level = LogLevel(level)
	entry.Kind = kind.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func encodeGroups(groups []Group) (string, error) {
	if groups == nil {
		groups = []Group{}
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return "", fmt.Errorf("encode groups: %w", err)
	}
	return string(data), nil
}

func decodeGroups(raw string) ([]Group, error) {
	if raw == "" {
		return nil, nil
	}
	var groups []Group
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	return groups, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}
