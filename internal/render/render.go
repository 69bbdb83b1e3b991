package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"stillcut/internal/fileutil"
	"stillcut/internal/logging"
	"stillcut/internal/media/ffprobe"
	"stillcut/internal/services"
)

// Segment is one still image held for the length of one audio clip.
type Segment struct {
	Image string
	Audio string
}

// Progress reports segments completed out of Steps. The final step is the
// concat and publish of the finished file.
type Progress struct {
	Step    int
	Steps   int
	Percent float64
	Message string
}

// ProgressFunc receives progress updates on the rendering goroutine.
type ProgressFunc func(Progress)

// Request describes one group to render.
type Request struct {
	Segments       []Segment
	OutputFilename string
	OutDir         string
	OnExisting     ExistingPolicy
	Progress       ProgressFunc
}

// Result is the outcome of a successful render.
type Result struct {
	OutputPath string
	Skipped    bool
}

// Prober reads media metadata.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Renderer renders groups one at a time. It is safe to reuse but not to call
// concurrently for the same output path.
type Renderer struct {
	opts   Options
	probe  Prober
	runner Runner
	logger *slog.Logger

	// fellBack is set once the configured video encoder has failed.
	fellBack atomic.Bool
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithRunner replaces the ffmpeg runner.
func WithRunner(r Runner) Option {
	return func(rd *Renderer) {
		if r != nil {
			rd.runner = r
		}
	}
}

// WithProber replaces the ffprobe call.
func WithProber(p Prober) Option {
	return func(rd *Renderer) {
		if p != nil {
			rd.probe = p
		}
	}
}

// New builds a Renderer that shells out to ffmpeg and ffprobe.
func New(opts Options, logger *slog.Logger, options ...Option) *Renderer {
	r := &Renderer{
		opts:   opts,
		probe:  ffprobe.Inspect,
		runner: ExecRunner{},
		logger: logging.NewComponentLogger(logger, "render"),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Options returns the parameters the renderer was built with.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render produces req.OutDir/req.OutputFilename. On error nothing is left at
// the output path that was not there before.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	if len(req.Segments) == 0 {
		return Result{}, services.Wrap(services.ErrEmptyInput, "render", "validate", "group has no pairs", nil)
	}
	if req.OutputFilename == "" || filepath.Base(req.OutputFilename) != req.OutputFilename {
		return Result{}, services.Wrap(services.ErrValidation, "render", "validate", fmt.Sprintf("invalid output filename %q", req.OutputFilename), nil)
	}
	policy := req.OnExisting
	if policy == "" {
		policy = ExistingError
	}
	logger := logging.WithContext(ctx, r.logger)
	outputPath := filepath.Join(req.OutDir, req.OutputFilename)
	steps := len(req.Segments) + 1
	report := func(step int, message string) {
		if req.Progress == nil {
			return
		}
		req.Progress(Progress{Step: step, Steps: steps, Percent: 100 * float64(step) / float64(steps), Message: message})
	}

	exists, err := fileutil.Exists(outputPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "render", "check output", outputPath, err)
	}
	if exists {
		switch policy {
		case ExistingSkip:
			logger.Info("output exists, skipping", logging.String("output", outputPath))
			report(steps, "skipped, output exists")
			return Result{OutputPath: outputPath, Skipped: true}, nil
		case ExistingOverwrite:
			logger.Info("output exists, overwriting", logging.String("output", outputPath))
		default:
			return Result{}, services.Wrap(services.ErrOutputExists, "render", "check output", fmt.Sprintf("%s already exists", outputPath), nil)
		}
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "render", "create output dir", req.OutDir, err)
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	scratch, err := os.MkdirTemp(r.opts.ScratchDir, "stillcut-group-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "render", "create scratch dir", r.opts.ScratchDir, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logging.WarnWithContext(logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.String("scratch", scratch), logging.Error(err),
				logging.String(logging.FieldImpact, "temporary files remain on disk"),
				logging.String(logging.FieldErrorHint, "remove the directory manually"))
		}
	}()

	segmentPaths, err := r.encodeSegments(ctx, logger, scratch, req.Segments, report)
	if err != nil {
		return Result{}, err
	}

	listPath := filepath.Join(scratch, "segments.ffconcat")
	if err := os.WriteFile(listPath, []byte(concatList(segmentPaths)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "render", "write concat list", listPath, err)
	}
	joined := filepath.Join(scratch, "joined.mp4")
	cmd := concatCommand(r.opts, listPath, joined)
	logger.Debug("ffmpeg concat", logging.String("command", cmd.String()))
	if err := r.runner.Run(ctx, cmd); err != nil {
		return Result{}, classifyRunError(ctx, cmd, err)
	}

	skipped, err := publish(joined, outputPath, policy)
	if err != nil {
		return Result{}, err
	}
	if skipped {
		logger.Info("output appeared during render, skipping", logging.String("output", outputPath))
		report(steps, "skipped, output exists")
		return Result{OutputPath: outputPath, Skipped: true}, nil
	}
	report(steps, "done")
	return Result{OutputPath: outputPath}, nil
}

// publish moves the joined file into place. Only the overwrite policy may
// replace a file, including one created while the group was rendering.
func publish(joined, outputPath string, policy ExistingPolicy) (bool, error) {
	if policy == ExistingOverwrite {
		if err := fileutil.MoveFile(joined, outputPath); err != nil {
			return false, services.Wrap(services.ErrExternalTool, "render", "publish", outputPath, err)
		}
		return false, nil
	}
	err := fileutil.MoveFileNoReplace(joined, outputPath)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fileutil.ErrDestinationExists) && policy == ExistingSkip:
		return true, nil
	case errors.Is(err, fileutil.ErrDestinationExists):
		return false, services.Wrap(services.ErrOutputExists, "render", "publish", fmt.Sprintf("%s already exists", outputPath), nil)
	default:
		return false, services.Wrap(services.ErrExternalTool, "render", "publish", outputPath, err)
	}
}

// encodeSegments encodes every segment with the same options. When the video
// encoder fails and a fallback codec is configured, the whole group is
// encoded again with it so the concat step sees uniform streams. Later groups
// go straight to the fallback.
func (r *Renderer) encodeSegments(ctx context.Context, logger *slog.Logger, scratch string, segs []Segment, report func(int, string)) ([]string, error) {
	opts := r.segmentOptions()
	reported := 0
	encodeAll := func(opts Options) ([]string, error) {
		paths := make([]string, 0, len(segs))
		for i, seg := range segs {
			path, err := r.renderSegment(ctx, opts, scratch, i, seg)
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
			if i+1 > reported {
				reported = i + 1
				report(reported, fmt.Sprintf("segment %d/%d encoded", i+1, len(segs)))
			}
		}
		return paths, nil
	}

	paths, err := encodeAll(opts)
	if err == nil || !shouldFallBack(ctx, opts, err) {
		return paths, err
	}
	logging.WarnWithContext(logger, "video encoder failed, re-encoding group", "encoder_fallback",
		logging.String("codec", opts.VideoCodec),
		logging.String("fallback_codec", opts.FallbackCodec),
		logging.Error(err),
		logging.String(logging.FieldImpact, "group is encoded in software and takes longer"),
		logging.String(logging.FieldErrorHint, "check the hardware encoder or set render.video_codec"))
	r.fellBack.Store(true)
	return encodeAll(opts.withFallback())
}

func (r *Renderer) segmentOptions() Options {
	if r.fellBack.Load() && r.opts.canFallBack() {
		return r.opts.withFallback()
	}
	return r.opts
}

// shouldFallBack accepts encoder and generic ffmpeg failures. Bad input,
// timeouts and cancellation fail the same way with any codec.
func shouldFallBack(ctx context.Context, opts Options, err error) bool {
	if !opts.canFallBack() || ctx.Err() != nil {
		return false
	}
	return errors.Is(err, services.ErrCodecUnavailable) || errors.Is(err, services.ErrExternalTool)
}

func (r *Renderer) renderSegment(ctx context.Context, opts Options, scratch string, index int, seg Segment) (string, error) {
	duration, err := r.audioDuration(ctx, seg.Audio)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", classifyRunError(ctx, Command{Step: "frame"}, err)
	}

	frame := filepath.Join(scratch, "frame-"+strconv.Itoa(index)+".png")
	if err := prepareFrame(seg.Image, frame, opts.Width, opts.Height, opts.PadColor); err != nil {
		return "", err
	}

	output := filepath.Join(scratch, "segment-"+strconv.Itoa(index)+".mp4")
	cmd := segmentCommand(opts, frame, seg.Audio, duration, output)
	logging.WithContext(ctx, r.logger).Debug("ffmpeg segment", logging.String("command", cmd.String()))
	if err := r.runner.Run(ctx, cmd); err != nil {
		return "", classifyRunError(ctx, cmd, err)
	}
	return output, nil
}

func (r *Renderer) audioDuration(ctx context.Context, path string) (float64, error) {
	result, err := r.probe(ctx, r.opts.FFprobeBinary, path)
	if err != nil {
		switch {
		case errors.Is(err, ffprobe.ErrBinaryNotFound):
			return 0, services.Wrap(services.ErrCodecUnavailable, "render", "probe audio", "ffprobe cannot be executed", err)
		case ctx.Err() != nil:
			return 0, classifyRunError(ctx, Command{Step: "probe"}, err)
		default:
			return 0, services.Wrap(services.ErrCorruptInput, "render", "probe audio", fmt.Sprintf("cannot decode %s", path), err)
		}
	}
	if result.AudioStreamCount() == 0 {
		return 0, services.Wrap(services.ErrCorruptInput, "render", "probe audio", fmt.Sprintf("%s has no audio stream", path), nil)
	}
	duration, ok := result.AudioDuration()
	if !ok {
		return 0, services.Wrap(services.ErrCorruptInput, "render", "probe audio", fmt.Sprintf("%s has no decodable audio", path), nil)
	}
	return duration, nil
}
