package config

const (
	defaultDataDir            = "~/.local/share/easel"
	defaultLogDir             = "~/.local/share/easel/logs"
	defaultImagesDir          = "~/.local/share/easel/images"
	defaultAPIBind            = "127.0.0.1:7833"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultGeminiModel        = "gemini-2.5-flash-image-preview"
	defaultAspectRatio        = "1:1"
	defaultImageSize          = "1K"
	defaultGeminiTimeout      = 300
	defaultQueuePollInterval  = 10
	defaultErrorRetryInterval = 5
	defaultHeartbeatInterval  = 30
	defaultLockStaleTimeout   = 300
	defaultMaxConcurrent      = 5
	defaultRetentionLimit     = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ImagesDir: defaultImagesDir,
			APIBind:   defaultAPIBind,
		},
		Gemini: Gemini{
			Model:          defaultGeminiModel,
			AspectRatio:    defaultAspectRatio,
			ImageSize:      defaultImageSize,
			TimeoutSeconds: defaultGeminiTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			LockStaleTimeout:   defaultLockStaleTimeout,
			MaxConcurrent:      defaultMaxConcurrent,
			RetentionLimit:     defaultRetentionLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
