package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment overrides. Values in a .env file are loaded into the process
// environment by the CLI before Load runs.
const (
	EnvNtfyTopic = "STILLCUT_NTFY_TOPIC"
	EnvNATSURL   = "STILLCUT_NATS_URL"
	EnvLogLevel  = "STILLCUT_LOG_LEVEL"
)

func (c *Config) applyEnv() {
	if value, ok := lookupEnv(EnvNtfyTopic); ok {
		c.Notifications.NtfyTopic = value
	}
	if value, ok := lookupEnv(EnvNATSURL); ok {
		c.Notifications.NATSURL = value
	}
	if value, ok := lookupEnv(EnvLogLevel); ok {
		c.Logging.Level = value
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = os.TempDir()
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	r := &c.Render
	r.VideoCodec = strings.TrimSpace(r.VideoCodec)
	if r.VideoCodec == "" {
		r.VideoCodec = defaultVideoCodec
	}
	r.FallbackCodec = strings.TrimSpace(r.FallbackCodec)
	if r.FallbackCodec == "" {
		r.FallbackCodec = defaultFallbackCodec
	}
	if strings.EqualFold(r.VideoCodec, VideoCodecAuto) {
		r.VideoCodec = VideoCodecAuto
	}
	if strings.EqualFold(r.FallbackCodec, FallbackNone) {
		r.FallbackCodec = FallbackNone
	}
	r.VideoBitrate = normalizeBitrate(r.VideoBitrate, defaultVideoBitrate)
	r.MaxBitrate = normalizeBitrate(r.MaxBitrate, defaultMaxBitrate)
	r.BufferSize = normalizeBitrate(r.BufferSize, defaultBufferSize)
	r.Preset = strings.TrimSpace(r.Preset)
	r.AudioCodec = strings.TrimSpace(r.AudioCodec)
	if r.AudioCodec == "" {
		r.AudioCodec = defaultAudioCodec
	}
	r.AudioBitrate = strings.ToLower(strings.TrimSpace(r.AudioBitrate))
	if r.AudioBitrate == "" {
		r.AudioBitrate = defaultAudioBitrate
	}
	r.PadColor = strings.ToLower(strings.TrimSpace(r.PadColor))
	if r.PadColor == "" {
		r.PadColor = defaultPadColor
	}
	r.OnExisting = strings.ToLower(strings.TrimSpace(r.OnExisting))
	if r.OnExisting == "" {
		r.OnExisting = OnExistingError
	}
	r.FFmpegPath = strings.TrimSpace(r.FFmpegPath)
	r.FFprobePath = strings.TrimSpace(r.FFprobePath)
	if r.TimeoutSeconds < 0 {
		r.TimeoutSeconds = 0
	}
}

func normalizeBitrate(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	n.NATSURL = strings.TrimSpace(n.NATSURL)
	n.NATSSubject = strings.TrimSpace(n.NATSSubject)
	if n.NATSSubject == "" {
		n.NATSSubject = defaultNATSSubject
	}
	if n.RequestTimeout <= 0 {
		n.RequestTimeout = defaultNotifyTimeout
	}
}
