package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"stillcut/internal/services"
)

// Command is one ffmpeg invocation. Output is the file the command writes.
type Command struct {
	Step   string
	Binary string
	Args   []string
	Output string
}

func (c Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Runner executes commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecError carries the tail of ffmpeg's stderr.
type ExecError struct {
	Command Command
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Command.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command.Step, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

const stderrTailBytes = 2048

func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	var stderr bytes.Buffer
	proc := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec
	proc.Stderr = &stderr
	if err := proc.Run(); err != nil {
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		return &ExecError{Command: cmd, Stderr: tail, Err: err}
	}
	return nil
}

var quietArgs = []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

func withQuietArgs(args []string) []string {
	return append(append([]string(nil), quietArgs...), args...)
}

// segmentCommand holds the still frame for duration seconds under the audio clip.
func segmentCommand(opts Options, frame, audio string, duration float64, output string) Command {
	fps := strconv.Itoa(opts.FPS)
	still := ffmpeg.Input(frame, ffmpeg.KwArgs{
		"loop":      "1",
		"framerate": fps,
		"t":         formatSeconds(duration),
	})
	sound := ffmpeg.Input(audio)

	out := ffmpeg.KwArgs{
		"c:v":             opts.VideoCodec,
		"pix_fmt":         "yuv420p",
		"colorspace":      "bt709",
		"color_primaries": "bt709",
		"color_trc":       "bt709",
		"r":               fps,
		"g":               strconv.Itoa(opts.FPS * 2),
		"sc_threshold":    "0",
		"c:a":             opts.AudioCodec,
		"b:a":             opts.AudioBitrate,
		"ar":              strconv.Itoa(opts.AudioSampleRate),
		"ac":              "2",
		"shortest":        "",
		"movflags":        "+faststart",
	}
	switch {
	case opts.h264():
		out["profile:v"] = "high"
		out["level:v"] = "4.2"
	case opts.hevc():
		out["profile:v"] = "main"
		out["tag:v"] = "hvc1"
	}
	if opts.softwareEncoder() {
		if opts.Preset != "" {
			out["preset"] = opts.Preset
		}
		out["crf"] = strconv.Itoa(opts.CRF)
		out["tune"] = "stillimage"
	} else if opts.VideoBitrate != "" {
		// Hardware encoders ignore crf and default to a very low bitrate.
		out["b:v"] = opts.VideoBitrate
		if opts.MaxBitrate != "" {
			out["maxrate"] = opts.MaxBitrate
		}
		if opts.BufferSize != "" {
			out["bufsize"] = opts.BufferSize
		}
	}

	args := ffmpeg.Output([]*ffmpeg.Stream{still.Video(), sound.Audio()}, output, out).
		OverWriteOutput().
		GetArgs()
	return Command{Step: "segment", Binary: opts.FFmpegBinary, Args: withQuietArgs(args), Output: output}
}

// concatCommand joins segments listed in listPath without re-encoding.
func concatCommand(opts Options, listPath, output string) Command {
	args := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(output, ffmpeg.KwArgs{"c": "copy", "movflags": "+faststart"}).
		OverWriteOutput().
		GetArgs()
	return Command{Step: "concat", Binary: opts.FFmpegBinary, Args: withQuietArgs(args), Output: output}
}

// concatList renders an ffconcat file body for the given segment paths.
func concatList(paths []string) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

var (
	encoderMarkers = []string{"unknown encoder", "encoder not found", "error selecting an encoder", "error while opening encoder"}
	corruptMarkers = []string{"invalid data found when processing input", "could not find codec parameters", "error while decoding", "moov atom not found"}
)

// classifyRunError maps an ffmpeg failure onto the error taxonomy.
func classifyRunError(ctx context.Context, cmd Command, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "render", cmd.Step, "render deadline exceeded", err)
	case ctx.Err() != nil:
		return services.Wrap(services.ErrTransient, "render", cmd.Step, "interrupted", ctx.Err())
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return services.Wrap(services.ErrCodecUnavailable, "render", cmd.Step, fmt.Sprintf("%s cannot be executed", cmd.Binary), err)
	}

	var execErr *ExecError
	stderr := ""
	if errors.As(err, &execErr) {
		stderr = strings.ToLower(execErr.Stderr)
	}
	for _, marker := range encoderMarkers {
		if strings.Contains(stderr, marker) {
			return services.Wrap(services.ErrCodecUnavailable, "render", cmd.Step, "encoder cannot be invoked", err)
		}
	}
	for _, marker := range corruptMarkers {
		if strings.Contains(stderr, marker) {
			return services.Wrap(services.ErrCorruptInput, "render", cmd.Step, "input cannot be decoded", err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "render", cmd.Step, "ffmpeg failed", err)
}
