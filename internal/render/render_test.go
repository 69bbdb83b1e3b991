package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"stillcut/internal/logging"
	"stillcut/internal/media/ffprobe"
	"stillcut/internal/services"
)

type fakeRunner struct {
	mu   sync.Mutex
	cmds []Command
	fail func(ctx context.Context, cmd Command) error
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(ctx, cmd); err != nil {
			return err
		}
	}
	return os.WriteFile(cmd.Output, []byte(cmd.Step+" output"), 0o644)
}

func (f *fakeRunner) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := make([]string, len(f.cmds))
	for i, c := range f.cmds {
		steps[i] = c.Step
	}
	return steps
}

func audioProber(durations map[string]float64) Prober {
	return func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		d, ok := durations[filepath.Base(path)]
		if !ok {
			return ffprobe.Result{}, errors.New("ffprobe inspect: exit status 1: Invalid data found when processing input")
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", Duration: formatSeconds(d)}},
		}, nil
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Width:           64,
		Height:          36,
		FPS:             30,
		VideoCodec:      "libx264",
		Preset:          "veryfast",
		CRF:             23,
		AudioCodec:      "aac",
		AudioBitrate:    "128k",
		AudioSampleRate: 48000,
		PadColor:        color.NRGBA{A: 0xff},
		ScratchDir:      t.TempDir(),
		FFmpegBinary:    "ffmpeg",
		FFprobeBinary:   "ffprobe",
	}
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save image: %v", err)
	}
	return path
}

type fixture struct {
	opts     Options
	runner   *fakeRunner
	renderer *Renderer
	inDir    string
	outDir   string
}

func newFixture(t *testing.T, durations map[string]float64) *fixture {
	t.Helper()
	f := &fixture{opts: testOptions(t), runner: &fakeRunner{}, inDir: t.TempDir(), outDir: filepath.Join(t.TempDir(), "out")}
	f.renderer = New(f.opts, logging.NewNop(), WithRunner(f.runner), WithProber(audioProber(durations)))
	return f
}

func (f *fixture) segments(t *testing.T, pairs ...[2]string) []Segment {
	t.Helper()
	segs := make([]Segment, len(pairs))
	for i, p := range pairs {
		segs[i] = Segment{Image: writeImage(t, f.inDir, p[0], 40, 30), Audio: filepath.Join(f.inDir, p[1])}
	}
	return segs
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be cleaned, found %d entries", len(entries))
	}
}

func TestRenderSuccess(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 2.5, "b.mp3": 1})
	var progress []Progress
	res, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}, [2]string{"002.png", "b.mp3"}),
		OutputFilename: "001-002.mp4",
		OutDir:         f.outDir,
		Progress:       func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if res.Skipped {
		t.Fatal("did not expect skip")
	}
	if res.OutputPath != filepath.Join(f.outDir, "001-002.mp4") {
		t.Fatalf("unexpected output path %q", res.OutputPath)
	}
	content, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(content) != "concat output" {
		t.Fatalf("expected concat result to be published, got %q", content)
	}
	if got := strings.Join(f.runner.steps(), ","); got != "segment,segment,concat" {
		t.Fatalf("unexpected command sequence %s", got)
	}

	wantPercents := []float64{100.0 / 3, 200.0 / 3, 100}
	if len(progress) != len(wantPercents) {
		t.Fatalf("expected %d progress callbacks, got %d", len(wantPercents), len(progress))
	}
	for i, p := range progress {
		if p.Percent < wantPercents[i]-0.01 || p.Percent > wantPercents[i]+0.01 {
			t.Fatalf("progress %d = %.2f, want %.2f", i, p.Percent, wantPercents[i])
		}
		if p.Steps != 3 {
			t.Fatalf("expected 3 steps, got %d", p.Steps)
		}
	}

	seg := f.runner.cmds[0]
	if !containsSeq(seg.Args, "-t", "2.500") {
		t.Fatalf("expected segment held for the probed duration, args %v", seg.Args)
	}
	assertScratchEmpty(t, f.opts.ScratchDir)
}

func TestRenderCorruptAudioLeavesNoOutput(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1})
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}, [2]string{"002.png", "broken.mp3"}),
		OutputFilename: "001-002.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.mp3") {
		t.Fatalf("expected error to name the file, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(f.outDir, "001-002.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err = %v", statErr)
	}
	assertScratchEmpty(t, f.opts.ScratchDir)
}

func TestRenderCorruptImage(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1})
	bad := filepath.Join(f.inDir, "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       []Segment{{Image: bad, Audio: filepath.Join(f.inDir, "a.mp3")}},
		OutputFilename: "bad.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
	if len(f.runner.steps()) != 0 {
		t.Fatalf("ffmpeg should not run for an undecodable image, ran %v", f.runner.steps())
	}
}

func TestRenderAudioWithoutAudioStream(t *testing.T) {
	f := newFixture(t, nil)
	f.renderer = New(f.opts, nil, WithRunner(f.runner), WithProber(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}, Format: ffprobe.Format{Duration: "3"}}, nil
	}))
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}),
		OutputFilename: "001.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestRenderExistingOutputPolicies(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1})
	segs := f.segments(t, [2]string{"005.png", "a.mp3"})
	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(f.outDir, "005.mp4")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.renderer.Render(context.Background(), Request{Segments: segs, OutputFilename: "005.mp4", OutDir: f.outDir})
	if !errors.Is(err, services.ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists by default, got %v", err)
	}
	if services.KindOf(err) != services.KindOutputExists {
		t.Fatalf("unexpected kind %s", services.KindOf(err))
	}

	var last Progress
	res, err := f.renderer.Render(context.Background(), Request{
		Segments: segs, OutputFilename: "005.mp4", OutDir: f.outDir, OnExisting: ExistingSkip,
		Progress: func(p Progress) { last = p },
	})
	if err != nil || !res.Skipped || res.OutputPath != existing {
		t.Fatalf("expected skip, got %+v, %v", res, err)
	}
	if last.Percent != 100 {
		t.Fatalf("expected final 100%% progress on skip, got %.1f", last.Percent)
	}
	if len(f.runner.steps()) != 0 {
		t.Fatalf("skip should not invoke ffmpeg, ran %v", f.runner.steps())
	}

	if _, err := f.renderer.Render(context.Background(), Request{Segments: segs, OutputFilename: "005.mp4", OutDir: f.outDir, OnExisting: ExistingOverwrite}); err != nil {
		t.Fatalf("overwrite returned error: %v", err)
	}
	content, _ := os.ReadFile(existing)
	if string(content) != "concat output" {
		t.Fatalf("expected overwritten output, got %q", content)
	}
}

func TestRenderDoesNotReplaceOutputCreatedDuringRender(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1})
	output := filepath.Join(f.outDir, "001.mp4")
	f.runner.fail = func(_ context.Context, cmd Command) error {
		if cmd.Step == "concat" {
			return os.WriteFile(output, []byte("someone else"), 0o644)
		}
		return nil
	}
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}),
		OutputFilename: "001.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}
	if content, _ := os.ReadFile(output); string(content) != "someone else" {
		t.Fatalf("existing file was replaced: %q", content)
	}
	entries, _ := os.ReadDir(f.outDir)
	if len(entries) != 1 {
		t.Fatalf("expected only the existing file in output dir, got %d entries", len(entries))
	}
	assertScratchEmpty(t, f.opts.ScratchDir)
}

func TestRenderCodecUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unknown encoder", &ExecError{Stderr: "Unknown encoder 'libx999'", Err: errors.New("exit status 1")}},
		{"missing binary", &ExecError{Err: exec.ErrNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]float64{"a.mp3": 1})
			f.runner.fail = func(context.Context, Command) error { return tt.err }
			_, err := f.renderer.Render(context.Background(), Request{
				Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}),
				OutputFilename: "001.mp4",
				OutDir:         f.outDir,
			})
			if !errors.Is(err, services.ErrCodecUnavailable) {
				t.Fatalf("expected ErrCodecUnavailable, got %v", err)
			}
		})
	}
}

func videoCodecOf(cmd Command) string {
	for i := 0; i+1 < len(cmd.Args); i++ {
		if cmd.Args[i] == "-c:v" {
			return cmd.Args[i+1]
		}
	}
	return ""
}

func newHardwareFixture(t *testing.T, durations map[string]float64, fallback string) *fixture {
	t.Helper()
	f := newFixture(t, durations)
	f.opts.VideoCodec = "h264_videotoolbox"
	f.opts.FallbackCodec = fallback
	f.opts.VideoBitrate = "6M"
	f.renderer = New(f.opts, logging.NewNop(), WithRunner(f.runner), WithProber(audioProber(durations)))
	return f
}

func failHardwareSegments(_ context.Context, cmd Command) error {
	if cmd.Step == "segment" && videoCodecOf(cmd) == "h264_videotoolbox" {
		return &ExecError{Command: cmd, Stderr: "Error while opening encoder for output stream #0:0", Err: errors.New("exit status 1")}
	}
	return nil
}

func TestRenderFallsBackWhenHardwareEncoderFails(t *testing.T) {
	durations := map[string]float64{"a.mp3": 1, "b.mp3": 2}
	f := newHardwareFixture(t, durations, "libx264")
	f.runner.fail = failHardwareSegments

	var percents []float64
	res, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}, [2]string{"002.png", "b.mp3"}),
		OutputFilename: "001-002.mp4",
		OutDir:         f.outDir,
		Progress:       func(p Progress) { percents = append(percents, p.Percent) },
	})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if _, statErr := os.Stat(res.OutputPath); statErr != nil {
		t.Fatalf("expected output: %v", statErr)
	}

	var codecs []string
	for _, cmd := range f.runner.cmds {
		if cmd.Step == "segment" {
			codecs = append(codecs, videoCodecOf(cmd))
		}
	}
	if got := strings.Join(codecs, ","); got != "h264_videotoolbox,libx264,libx264" {
		t.Fatalf("unexpected segment codecs %s", got)
	}
	last := f.runner.cmds[2]
	if slices.Contains(last.Args, "-b:v") || !containsSeq(last.Args, "-crf", "23") {
		t.Fatalf("fallback segment should use crf rate control: %v", last.Args)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards: %v", percents)
		}
	}

	// The next group skips the failing encoder.
	f.runner.cmds = nil
	if _, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"003.png", "a.mp3"}),
		OutputFilename: "003.mp4",
		OutDir:         f.outDir,
	}); err != nil {
		t.Fatalf("second render: %v", err)
	}
	if codec := videoCodecOf(f.runner.cmds[0]); codec != "libx264" {
		t.Fatalf("expected later groups to use libx264, got %s", codec)
	}
}

func TestRenderWithoutFallbackFailsGroup(t *testing.T) {
	f := newHardwareFixture(t, map[string]float64{"a.mp3": 1}, "")
	f.runner.fail = failHardwareSegments
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}),
		OutputFilename: "001.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrCodecUnavailable) {
		t.Fatalf("expected ErrCodecUnavailable, got %v", err)
	}
	if len(f.runner.cmds) != 1 {
		t.Fatalf("expected a single attempt, got %v", f.runner.steps())
	}
}

func TestRenderCorruptInputDoesNotFallBack(t *testing.T) {
	f := newHardwareFixture(t, map[string]float64{"a.mp3": 1}, "libx264")
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}, [2]string{"002.png", "broken.mp3"}),
		OutputFilename: "001-002.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
	for _, cmd := range f.runner.cmds {
		if videoCodecOf(cmd) == "libx264" {
			t.Fatalf("bad input must not trigger the fallback encoder: %v", cmd.Args)
		}
	}
}

func TestRenderConcatFailureRemovesPartialOutput(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1, "b.mp3": 1})
	f.runner.fail = func(_ context.Context, cmd Command) error {
		if cmd.Step == "concat" {
			_ = os.WriteFile(cmd.Output, []byte("partial"), 0o644)
			return &ExecError{Command: cmd, Stderr: "Conversion failed!", Err: errors.New("exit status 1")}
		}
		return nil
	}
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}, [2]string{"002.png", "b.mp3"}),
		OutputFilename: "001-002.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(f.outDir, "001-002.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err = %v", statErr)
	}
	assertScratchEmpty(t, f.opts.ScratchDir)
}

func TestRenderTimeout(t *testing.T) {
	f := newFixture(t, map[string]float64{"a.mp3": 1})
	f.opts.Timeout = 20 * time.Millisecond
	f.renderer = New(f.opts, nil, WithRunner(f.runner), WithProber(audioProber(map[string]float64{"a.mp3": 1})))
	f.runner.fail = func(ctx context.Context, _ Command) error {
		<-ctx.Done()
		return &ExecError{Err: errors.New("signal: killed")}
	}
	_, err := f.renderer.Render(context.Background(), Request{
		Segments:       f.segments(t, [2]string{"001.png", "a.mp3"}),
		OutputFilename: "001.mp4",
		OutDir:         f.outDir,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRenderRejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.renderer.Render(context.Background(), Request{OutputFilename: "x.mp4", OutDir: f.outDir}); !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	segs := []Segment{{Image: "a.png", Audio: "a.mp3"}}
	if _, err := f.renderer.Render(context.Background(), Request{Segments: segs, OutputFilename: "../x.mp4", OutDir: f.outDir}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLetterboxNeverCrops(t *testing.T) {
	pad := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	wide := imaging.New(200, 100, color.NRGBA{R: 255, A: 255})
	frame := letterbox(wide, 160, 90, pad)
	if frame.Bounds() != image.Rect(0, 0, 160, 90) {
		t.Fatalf("unexpected frame bounds %v", frame.Bounds())
	}
	if got := frame.NRGBAAt(80, 2); got != pad {
		t.Fatalf("expected pad colour in top band, got %v", got)
	}
	if got := frame.NRGBAAt(80, 45); got.R < 200 {
		t.Fatalf("expected image content at centre, got %v", got)
	}
	if got := frame.NRGBAAt(1, 45); got.R < 200 {
		t.Fatalf("expected image to span full width, got %v", got)
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		srcW, srcH, maxW, maxH int
		wantW, wantH           int
	}{
		{200, 100, 160, 90, 160, 80},
		{100, 200, 160, 90, 45, 90},
		{16, 9, 1920, 1080, 1920, 1080},
		{1920, 1080, 1920, 1080, 1920, 1080},
		{0, 10, 100, 100, 0, 0},
	}
	for _, tt := range tests {
		w, h := fitSize(tt.srcW, tt.srcH, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Fatalf("fitSize(%d,%d,%d,%d) = %dx%d, want %dx%d", tt.srcW, tt.srcH, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]ExistingPolicy{"": ExistingError, "Skip": ExistingSkip, "overwrite": ExistingOverwrite} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("rename"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
