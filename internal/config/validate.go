package config

import (
	"errors"
	"fmt"
	"image/color"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var bitratePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[KM]?$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	r := c.Render
	if err := ensurePositiveMap(map[string]int{
		"render.width":             r.Width,
		"render.height":            r.Height,
		"render.audio_sample_rate": r.AudioSampleRate,
	}); err != nil {
		return err
	}
	if r.Width%2 != 0 || r.Height%2 != 0 {
		return fmt.Errorf("render.width and render.height must be even for yuv420p, got %dx%d", r.Width, r.Height)
	}
	if !slices.Contains(supportedFPS, r.FPS) {
		return fmt.Errorf("render.fps must be one of %v, got %d", supportedFPS, r.FPS)
	}
	if r.CRF < 0 || r.CRF > 51 {
		return fmt.Errorf("render.crf must be between 0 and 51, got %d", r.CRF)
	}
	for key, value := range map[string]string{
		"render.video_bitrate": r.VideoBitrate,
		"render.max_bitrate":   r.MaxBitrate,
		"render.buffer_size":   r.BufferSize,
	} {
		if !bitratePattern.MatchString(value) {
			return fmt.Errorf("%s must look like 6M or 6000K, got %q", key, value)
		}
	}
	if r.FallbackCodec == VideoCodecAuto {
		return fmt.Errorf("render.fallback_codec must name an encoder, got %q", r.FallbackCodec)
	}
	if _, err := ParseHexColor(r.PadColor); err != nil {
		return fmt.Errorf("render.pad_color: %w", err)
	}
	if err := ValidateOnExisting(r.OnExisting); err != nil {
		return fmt.Errorf("render.on_existing: %w", err)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

// ValidateOnExisting accepts "error", "overwrite" or "skip".
func ValidateOnExisting(value string) error {
	switch value {
	case OnExistingError, OnExistingOverwrite, OnExistingSkip:
		return nil
	default:
		return fmt.Errorf("%q is not one of error, overwrite, skip", value)
	}
}

// ParseHexColor parses "#rrggbb" into an opaque colour.
func ParseHexColor(value string) (color.NRGBA, error) {
	value = strings.TrimSpace(value)
	if len(value) != 7 || value[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("%q is not a #rrggbb colour", value)
	}
	rgb, err := strconv.ParseUint(value[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%q is not a #rrggbb colour", value)
	}
	return color.NRGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}, nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
