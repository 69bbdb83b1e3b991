package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/daemon"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

// jobFlags are the flags shared by add and preview.
type jobFlags struct {
	groupSize  string
	all        bool
	onExisting string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.groupSize, "group-size", "g", "1", "Pairs per output video")
	cmd.Flags().BoolVar(&f.all, "all", false, "Render every pair into a single video")
	cmd.Flags().StringVar(&f.onExisting, "on-existing", "", "Existing output policy: error, overwrite or skip (default from config)")
}

func (f *jobFlags) spec(cmd *cobra.Command, args []string) (workflow.JobSpec, error) {
	if f.all && cmd.Flags().Changed("group-size") {
		return workflow.JobSpec{}, errors.New("specify only one of --group-size or --all")
	}
	mode := f.groupSize
	if f.all {
		mode = "all"
	}
	if f.onExisting != "" {
		if err := config.ValidateOnExisting(f.onExisting); err != nil {
			return workflow.JobSpec{}, err
		}
	}
	return workflow.JobSpec{
		ImagesDir:  args[0],
		AudioDir:   args[1],
		OutDir:     args[2],
		GroupMode:  mode,
		OnExisting: f.onExisting,
	}, nil
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add IMAGES_DIR AUDIO_DIR OUTPUT_DIR",
		Short: "Queue a render job for an images folder and an audio folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withManager(nil, func(cfg *config.Config, _ *queue.Store, mgr *workflow.Manager) error {
				id, err := mgr.Enqueue(cmd.Context(), spec)
				if err != nil {
					return err
				}
				job, err := mgr.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job #%d: %d pair(s) in %d group(s)\n", job.ID, job.PairCount(), len(job.Groups))
				for _, entry := range job.Log {
					if entry.Level == queue.LogWarn {
						fmt.Fprintf(out, "Warning: %s\n", entry.Message)
					}
				}
				if held, err := daemon.LockHeld(cfg); err == nil && !held {
					fmt.Fprintln(out, "No worker is running; start one with `stillcut run`")
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the queued job as JSON")
	return cmd
}
