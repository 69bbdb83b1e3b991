package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stillcut/internal/config"
	"stillcut/internal/pairing"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

type previewGroup struct {
	Output string        `json:"output"`
	Pairs  []previewPair `json:"pairs"`
}

type previewPair struct {
	Image string `json:"image"`
	Audio string `json:"audio"`
}

type previewResult struct {
	ImagesDir string         `json:"images_dir"`
	AudioDir  string         `json:"audio_dir"`
	OutDir    string         `json:"out_dir"`
	GroupMode string         `json:"group_mode"`
	Groups    []previewGroup `json:"groups"`
	Unmatched []string       `json:"unmatched,omitempty"`
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "preview IMAGES_DIR AUDIO_DIR OUTPUT_DIR",
		Short: "Show how the folders would be paired and grouped without queuing",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withManager(nil, func(_ *config.Config, _ *queue.Store, mgr *workflow.Manager) error {
				planned, err := mgr.Plan(spec)
				if err != nil {
					return err
				}
				result := buildPreview(planned)
				if jsonOutput {
					return writeJSON(cmd, result)
				}

				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"Group", "Output", "Image", "Audio"},
					buildPreviewRows(planned.Plan.Groups),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "\n%d pair(s) in %d group(s) -> %s\n", len(planned.Plan.Pairs), len(planned.Plan.Groups), planned.Spec.OutDir)
				if warning := planned.Plan.Unmatched.String(); warning != "" {
					fmt.Fprintf(out, "Warning: %s\n", warning)
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")
	return cmd
}

func buildPreview(planned *workflow.Planned) previewResult {
	result := previewResult{
		ImagesDir: planned.Spec.ImagesDir,
		AudioDir:  planned.Spec.AudioDir,
		OutDir:    planned.Spec.OutDir,
		GroupMode: planned.Mode.String(),
	}
	for _, g := range planned.Plan.Groups {
		group := previewGroup{Output: g.OutputFilename}
		for _, p := range g.Pairs {
			group.Pairs = append(group.Pairs, previewPair{Image: p.Image.Name(), Audio: p.Audio.Name()})
		}
		result.Groups = append(result.Groups, group)
	}
	if planned.Plan.Unmatched != nil {
		result.Unmatched = planned.Plan.Unmatched.Files
	}
	return result
}

// buildPreviewRows prints the group number and output name on the first pair
// of each group only.
func buildPreviewRows(groups []pairing.Group) [][]string {
	var rows [][]string
	for i, g := range groups {
		for j, p := range g.Pairs {
			number, output := "", ""
			if j == 0 {
				number = strconv.Itoa(i + 1)
				output = g.OutputFilename
			}
			rows = append(rows, []string{number, output, p.Image.Name(), p.Audio.Name()})
		}
	}
	return rows
}
