package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/daemon"
	"stillcut/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				held, err := daemon.LockHeld(cfg)
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("Worker", statusWarn, err.Error(), colorize))
				case held:
					fmt.Fprintln(out, renderStatusLine("Worker", statusOK, "Running", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Worker", statusInfo, "Not running", colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, store.Path(), colorize))

				running, err := store.List(cmd.Context(), queue.StatusRunning)
				if err != nil {
					return err
				}
				for _, job := range running {
					fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Job #%d", job.ID), statusInfo,
						fmt.Sprintf("%s, groups %s", formatPercent(job), formatGroupCounts(job)), colorize))
				}

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}
