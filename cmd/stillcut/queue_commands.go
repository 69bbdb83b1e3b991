package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queued, running and finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					if jobs == nil {
						jobs = []*queue.Job{}
					}
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Source", "Pairs", "Groups", "Progress", "Created"},
					buildJobListRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show a job's groups, outputs and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(nil, func(_ *config.Config, _ *queue.Store, mgr *workflow.Manager) error {
				job, err := mgr.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				renderJob(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func renderJob(cmd *cobra.Command, job *queue.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Job #%d", job.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), job.Status.Label(), colorize))
	fmt.Fprintf(out, "%sImages:     %s\n", statusIndent, job.ImagesDir)
	fmt.Fprintf(out, "%sAudio:      %s\n", statusIndent, job.AudioDir)
	fmt.Fprintf(out, "%sOutput:     %s\n", statusIndent, job.OutDir)
	fmt.Fprintf(out, "%sGroup size: %s\n", statusIndent, job.GroupMode)
	fmt.Fprintf(out, "%sOn existing: %s\n", statusIndent, job.OnExisting)
	fmt.Fprintf(out, "%sProgress:   %s", statusIndent, formatPercent(job))
	if job.ProgressMessage != "" {
		fmt.Fprintf(out, " (%s)", job.ProgressMessage)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%sCreated:    %s\n", statusIndent, formatDisplayTime(job.CreatedAt))
	fmt.Fprintf(out, "%sStarted:    %s\n", statusIndent, formatOptionalTime(job.StartedAt))
	fmt.Fprintf(out, "%sFinished:   %s\n", statusIndent, formatOptionalTime(job.FinishedAt))
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Groups", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Output", "Pairs", "Status", "Detail"},
		buildGroupRows(job.Groups),
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintln(out)

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Log", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(job.Log) == 0 {
		fmt.Fprintln(out, "No log entries")
		return
	}
	for _, entry := range job.Log {
		fmt.Fprintln(out, formatLogEntry(entry))
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove JOB_ID",
		Aliases: []string{"rm"},
		Short:   "Remove a job that has not started yet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(nil, func(_ *config.Config, _ *queue.Store, mgr *workflow.Manager) error {
				if err := mgr.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job #%d\n", id)
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				removed, err := store.ClearHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished job(s)\n", removed)
				return nil
			})
		},
	}
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(value), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}

func parseStatusFlags(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
