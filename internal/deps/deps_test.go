package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"stillcut/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present {
		t.Fatalf("expected resolved path %s, got %s", present, results[0].Path)
	}
}

func TestParseEncoders(t *testing.T) {
	output := `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder
 A....D aac                  AAC (Advanced Audio Coding)
`
	encoders := parseEncoders(output)
	for _, name := range []string{"libx264", "h264_nvenc", "aac"} {
		if !encoders[name] {
			t.Fatalf("expected %s in %v", name, encoders)
		}
	}
	if encoders["Video"] || encoders["="] {
		t.Fatalf("header lines leaked into encoders: %v", encoders)
	}
}

func TestCheckEncodersWithStubFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	script := "#!/bin/sh\necho ' ------'\necho ' V....D libx264 H.264'\necho ' A....D aac AAC'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckEncoders(context.Background(), stub, "libx264", "aac", "libfdk_aac")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || !results[1].Available {
		t.Fatalf("expected libx264 and aac available: %#v", results)
	}
	if results[2].Available || results[2].Detail == "" {
		t.Fatalf("expected libfdk_aac unavailable with detail: %#v", results[2])
	}
	if failing := Failing(results); len(failing) != 1 {
		t.Fatalf("expected one failing status, got %#v", failing)
	}
}

func TestCheckEncodersMissingBinary(t *testing.T) {
	results := CheckEncoders(context.Background(), "clearly-not-present-ffmpeg", "libx264")
	if len(results) != 1 || results[0].Available {
		t.Fatalf("expected unavailable encoder, got %#v", results)
	}
}

func TestRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Render.FFmpegPath = "/opt/ffmpeg/bin/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" || reqs[1].Command != "ffprobe" {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
}

func TestResolveVideoCodec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	binDir := t.TempDir()
	withHW := filepath.Join(binDir, "ffmpeg-hw")
	script := "#!/bin/sh\necho ' ------'\necho ' V....D libx264 H.264'\necho ' V....D h264_qsv QSV'\necho ' V....D h264_nvenc NVENC'\n"
	if err := os.WriteFile(withHW, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	softOnly := filepath.Join(binDir, "ffmpeg-soft")
	if err := os.WriteFile(softOnly, []byte("#!/bin/sh\necho ' ------'\necho ' V....D libx264 H.264'\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	ctx := context.Background()
	tests := []struct {
		binary, codec, want string
	}{
		{withHW, config.VideoCodecAuto, "h264_nvenc"},
		{softOnly, config.VideoCodecAuto, "libx264"},
		{"clearly-not-present-ffmpeg", config.VideoCodecAuto, "libx264"},
		{withHW, "libx265", "libx265"},
	}
	for _, tt := range tests {
		if got := ResolveVideoCodec(ctx, tt.binary, tt.codec); got != tt.want {
			t.Fatalf("ResolveVideoCodec(%s, %s) = %s, want %s", filepath.Base(tt.binary), tt.codec, got, tt.want)
		}
	}
}
