package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/daemon"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through ntfy and NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(nil, func(cfg *config.Config, store *queue.Store, mgr *workflow.Manager) error {
				d, err := daemon.New(cfg, store, nil, mgr)
				if err != nil {
					return err
				}
				sent, message, err := d.TestNotification(cmd.Context())
				if err != nil {
					return fmt.Errorf("%s: %w", message, err)
				}
				out := cmd.OutOrStdout()
				if sent {
					fmt.Fprintf(out, "Test notification sent\n")
					return nil
				}
				fmt.Fprintf(out, "Notifications disabled: %s\n", message)
				return nil
			})
		},
	}
}
