package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"stillcut/internal/config"
)

// Requirements lists the external binaries a render needs.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Encodes segments and joins them into the final MP4",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Reads audio durations and validates inputs",
		},
	}
}

// CheckEncoders asks ffmpeg which encoders it was built with and reports one
// Status per requested codec. A missing ffmpeg marks every codec unavailable.
func CheckEncoders(ctx context.Context, ffmpegBinary string, codecs ...string) []Status {
	results := make([]Status, 0, len(codecs))
	available, err := listEncoders(ctx, ffmpegBinary)
	for _, codec := range codecs {
		codec = strings.TrimSpace(codec)
		status := Status{
			Name:        "Encoder " + codec,
			Command:     ffmpegBinary,
			Description: "Required by render settings",
		}
		switch {
		case err != nil:
			status.Detail = err.Error()
		case available[codec]:
			status.Available = true
		default:
			status.Detail = fmt.Sprintf("%s was built without %s", ffmpegBinary, codec)
		}
		results = append(results, status)
	}
	return results
}

// HardwareVideoEncoders are the H.264 encoders tried by video_codec "auto",
// in order of preference. VAAPI is left out because it needs a device and an
// upload filter.
var HardwareVideoEncoders = []string{"h264_videotoolbox", "h264_nvenc", "h264_qsv", "h264_amf"}

// ResolveVideoCodec maps "auto" onto the first hardware encoder ffmpeg lists,
// or libx264. Any other codec is returned unchanged.
func ResolveVideoCodec(ctx context.Context, ffmpegBinary, codec string) string {
	if codec != config.VideoCodecAuto {
		return codec
	}
	available, err := listEncoders(ctx, ffmpegBinary)
	if err == nil {
		for _, name := range HardwareVideoEncoders {
			if available[name] {
				return name
			}
		}
	}
	return "libx264"
}

func listEncoders(ctx context.Context, ffmpegBinary string) (map[string]bool, error) {
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		return nil, fmt.Errorf("binary %q not found", ffmpegBinary)
	}
	out, err := exec.CommandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(string(out)), nil
}

// parseEncoders reads `ffmpeg -encoders` output. Entries follow a "------"
// separator as "<flags> <name> <description>".
func parseEncoders(output string) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inList {
			if strings.HasPrefix(line, "---") {
				inList = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// Failing returns the required statuses that are unavailable.
func Failing(statuses []Status) []Status {
	var failing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			failing = append(failing, status)
		}
	}
	return failing
}
