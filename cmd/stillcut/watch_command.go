package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/queue"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow render progress of the running worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				file, isFile := cmd.OutOrStdout().(*os.File)
				if once || !isFile || !isTerminal(file) {
					jobs, err := store.List(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), renderWatchSnapshot(jobs))
					return nil
				}

				program := tea.NewProgram(
					newWatchModel(cmd.Context(), store),
					tea.WithContext(cmd.Context()),
					tea.WithOutput(file),
				)
				_, err := program.Run()
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Print a single snapshot instead of the live view")
	return cmd
}
