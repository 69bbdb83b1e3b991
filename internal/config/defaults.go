package config

const (
	defaultConfigPath         = "~/.config/stillcut/config.toml"
	defaultDataDir            = "~/.local/share/stillcut"
	defaultLogDir             = "~/.local/share/stillcut/logs"
	defaultWidth              = 1920
	defaultHeight             = 1080
	defaultFPS                = 30
	defaultVideoCodec         = "libx264"
	defaultFallbackCodec      = "libx264"
	defaultVideoBitrate       = "6M"
	defaultMaxBitrate         = "8M"
	defaultBufferSize         = "12M"
	defaultPreset             = "medium"
	defaultCRF                = 19
	defaultAudioCodec         = "aac"
	defaultAudioBitrate       = "128k"
	defaultAudioSampleRate    = 48000
	defaultPadColor           = "#000000"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultNATSSubject        = "stillcut.jobs"
	defaultNotifyTimeout      = 10
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
)

// Existing output policies.
const (
	OnExistingError     = "error"
	OnExistingOverwrite = "overwrite"
	OnExistingSkip      = "skip"
)

const (
	// VideoCodecAuto picks a hardware H.264 encoder when ffmpeg has one.
	VideoCodecAuto = "auto"
	// FallbackNone disables re-encoding with a software codec.
	FallbackNone = "none"
)

var supportedFPS = []int{24, 25, 30, 50, 60}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Render: Render{
			Width:           defaultWidth,
			Height:          defaultHeight,
			FPS:             defaultFPS,
			VideoCodec:      defaultVideoCodec,
			FallbackCodec:   defaultFallbackCodec,
			VideoBitrate:    defaultVideoBitrate,
			MaxBitrate:      defaultMaxBitrate,
			BufferSize:      defaultBufferSize,
			Preset:          defaultPreset,
			CRF:             defaultCRF,
			AudioCodec:      defaultAudioCodec,
			AudioBitrate:    defaultAudioBitrate,
			AudioSampleRate: defaultAudioSampleRate,
			PadColor:        defaultPadColor,
			OnExisting:      OnExistingError,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			NATSSubject:    defaultNATSSubject,
			JobStarted:     true,
			JobCompleted:   true,
			Errors:         true,
		},
	}
}
