package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stillcut/internal/queue"
)

const displayTimeLayout = "2006-01-02 15:04:05"

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		if count := stats[status]; count > 0 {
			rows = append(rows, []string{status.Label(), fmt.Sprintf("%d", count)})
		}
	}
	return rows
}

func buildJobListRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			job.Status.Label(),
			jobSource(job),
			fmt.Sprintf("%d", job.PairCount()),
			formatGroupCounts(job),
			formatPercent(job),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildGroupRows(groups []queue.Group) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		detail := g.OutputPath
		if g.Error != "" {
			detail = g.Error
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", g.Index+1),
			g.OutputFilename,
			fmt.Sprintf("%d", len(g.Pairs)),
			string(g.Status),
			detail,
		})
	}
	return rows
}

func jobSource(job *queue.Job) string {
	return fmt.Sprintf("%s + %s", filepath.Base(job.ImagesDir), filepath.Base(job.AudioDir))
}

func formatGroupCounts(job *queue.Job) string {
	done := job.SucceededGroups + job.FailedGroups
	if job.FailedGroups > 0 {
		return fmt.Sprintf("%d/%d (%d failed)", done, len(job.Groups), job.FailedGroups)
	}
	return fmt.Sprintf("%d/%d", done, len(job.Groups))
}

func formatPercent(job *queue.Job) string {
	return fmt.Sprintf("%.0f%%", job.ProgressPercent)
}

func formatDisplayTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(displayTimeLayout)
}

func formatOptionalTime(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return formatDisplayTime(*ts)
}

func formatLogEntry(entry queue.LogEntry) string {
	level := strings.ToUpper(string(entry.Level))
	if entry.Kind != "" {
		return fmt.Sprintf("%s %-5s %s (%s)", formatDisplayTime(entry.CreatedAt), level, entry.Message, entry.Kind)
	}
	return fmt.Sprintf("%s %-5s %s", formatDisplayTime(entry.CreatedAt), level, entry.Message)
}
