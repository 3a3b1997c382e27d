package config

const (
	defaultWorkDir                = "~/.local/share/montage/work"
	defaultLogDir                 = "~/.local/share/montage/logs"
	defaultTrackDir               = "~/.local/share/montage/tracks"
	defaultSceneGenBaseURL        = "https://api.scenegen.example.com/v1"
	defaultSceneGenPollInterval   = 5
	defaultSceneGenPollAttempts   = 60
	defaultSceneGenMaxClipSeconds = 10
	defaultSceneGenRequestTimeout = 30
	defaultNarrationBaseURL       = "https://api.narration.example.com/v1"
	defaultNarrationVoice         = "default"
	defaultNarrationTimeout       = 120
	defaultStorageBackend         = "local"
	defaultStorageLocalDir        = "~/.local/share/montage/public"
	defaultStorageUploadTimeout   = 120
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultThumbnailOffsetSeconds = 2.0
	defaultProgressTTLSeconds     = 3600
	defaultWorkers                = 2
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultJobTimeout             = 1800
	defaultRetryAttempts          = 3
	defaultRetryBackoff           = 5
	defaultRetryBackoffMax        = 120
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			TrackDir: defaultTrackDir,
		},
		SceneGen: SceneGen{
			BaseURL:             defaultSceneGenBaseURL,
			PollIntervalSeconds: defaultSceneGenPollInterval,
			PollAttempts:        defaultSceneGenPollAttempts,
			MaxClipSeconds:      defaultSceneGenMaxClipSeconds,
			RequestTimeout:      defaultSceneGenRequestTimeout,
		},
		Narration: Narration{
			BaseURL:        defaultNarrationBaseURL,
			DefaultVoice:   defaultNarrationVoice,
			RequestTimeout: defaultNarrationTimeout,
		},
		Storage: Storage{
			Backend:       defaultStorageBackend,
			LocalDir:      defaultStorageLocalDir,
			UploadTimeout: defaultStorageUploadTimeout,
		},
		Media: Media{
			FFmpegBinary:           defaultFFmpegBinary,
			FFprobeBinary:          defaultFFprobeBinary,
			ThumbnailOffsetSeconds: defaultThumbnailOffsetSeconds,
		},
		Progress: Progress{
			TTLSeconds: defaultProgressTTLSeconds,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			JobTimeout:         defaultJobTimeout,
			RetryAttempts:      defaultRetryAttempts,
			RetryBackoff:       defaultRetryBackoff,
			RetryBackoffMax:    defaultRetryBackoffMax,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
