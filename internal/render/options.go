package render

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"stillcut/internal/config"
	"stillcut/internal/services"
)

// ExistingPolicy decides what happens when the output file already exists.
type ExistingPolicy string

const (
	ExistingError     ExistingPolicy = config.OnExistingError
	ExistingOverwrite ExistingPolicy = config.OnExistingOverwrite
	ExistingSkip      ExistingPolicy = config.OnExistingSkip
)

// ParsePolicy validates a policy name. Empty means ExistingError.
func ParsePolicy(value string) (ExistingPolicy, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ExistingError, nil
	}
	if err := config.ValidateOnExisting(value); err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "parse policy", err.Error(), nil)
	}
	return ExistingPolicy(value), nil
}

// Options are the render parameters shared by every group in a process.
type Options struct {
	Width           int
	Height          int
	FPS             int
	VideoCodec      string
	FallbackCodec   string
	Preset          string
	CRF             int
	VideoBitrate    string
	MaxBitrate      string
	BufferSize      string
	AudioCodec      string
	AudioBitrate    string
	AudioSampleRate int
	PadColor        color.NRGBA
	Timeout         time.Duration
	ScratchDir      string
	FFmpegBinary    string
	FFprobeBinary   string
}

// OptionsFromConfig maps the [render] and [paths] sections onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "render", "options", "configuration unavailable", nil)
	}
	pad, err := config.ParseHexColor(cfg.Render.PadColor)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "render", "options", fmt.Sprintf("render.pad_color: %v", err), nil)
	}
	fallback := cfg.Render.FallbackCodec
	if fallback == config.FallbackNone {
		fallback = ""
	}
	return Options{
		Width:           cfg.Render.Width,
		Height:          cfg.Render.Height,
		FPS:             cfg.Render.FPS,
		VideoCodec:      cfg.Render.VideoCodec,
		FallbackCodec:   fallback,
		Preset:          cfg.Render.Preset,
		CRF:             cfg.Render.CRF,
		VideoBitrate:    cfg.Render.VideoBitrate,
		MaxBitrate:      cfg.Render.MaxBitrate,
		BufferSize:      cfg.Render.BufferSize,
		AudioCodec:      cfg.Render.AudioCodec,
		AudioBitrate:    cfg.Render.AudioBitrate,
		AudioSampleRate: cfg.Render.AudioSampleRate,
		PadColor:        pad,
		Timeout:         cfg.RenderTimeout(),
		ScratchDir:      cfg.Paths.ScratchDir,
		FFmpegBinary:    cfg.FFmpegBinary(),
		FFprobeBinary:   cfg.FFprobeBinary(),
	}, nil
}

// x264 and x265 accept preset/crf/tune; hardware encoders do not.
func (o Options) softwareEncoder() bool {
	return strings.HasPrefix(o.VideoCodec, "libx26")
}

func (o Options) hevc() bool {
	return o.VideoCodec == "libx265" || strings.HasPrefix(o.VideoCodec, "hevc_")
}

func (o Options) h264() bool {
	return o.VideoCodec == "libx264" || strings.HasPrefix(o.VideoCodec, "h264_")
}

// canFallBack reports whether a failed encode may be retried with
// FallbackCodec.
func (o Options) canFallBack() bool {
	return o.FallbackCodec != "" && o.FallbackCodec != o.VideoCodec
}

// withFallback returns a copy that encodes with FallbackCodec.
func (o Options) withFallback() Options {
	o.VideoCodec = o.FallbackCodec
	return o
}
