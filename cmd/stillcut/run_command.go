package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stillcut/internal/daemon"
	"stillcut/internal/logging"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the render worker in the foreground",
		Long: "Run the render worker in the foreground. Jobs are processed one at a time in\n" +
			"the order they were queued. SIGINT or SIGTERM stops the worker; a job that is\n" +
			"rendering at that moment is marked failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closer, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer closer.Close()

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			mgr, err := workflow.NewManager(cfg, store, logger)
			if err != nil {
				store.Close()
				return err
			}
			d, err := daemon.New(cfg, store, logger, mgr)
			if err != nil {
				mgr.Close()
				store.Close()
				return err
			}
			defer d.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if drain {
				err := d.Drain(sigCtx)
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(out, "Worker interrupted")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Queue drained")
				return nil
			}

			if err := d.Start(sigCtx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Worker running (queue %s); press Ctrl+C to stop\n", store.Path())
			<-sigCtx.Done()
			d.Stop()
			fmt.Fprintln(out, "Worker stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "Process queued jobs and exit when the queue is empty")
	return cmd
}
