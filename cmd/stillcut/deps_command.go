package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stillcut/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe, encoders and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range checkLines(results, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			if len(preflight.Failed(results)) > 0 {
				return errors.New("dependency checks failed")
			}
			return nil
		},
	}
}
