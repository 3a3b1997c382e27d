package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSceneGen(); err != nil {
		return err
	}
	if err := c.normalizeNarration(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeProgress()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrackDir) == "" {
		c.Paths.TrackDir = defaultTrackDir
	}
	if c.Paths.TrackDir, err = expandPath(c.Paths.TrackDir); err != nil {
		return fmt.Errorf("paths.track_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSceneGen() error {
	c.SceneGen.BaseURL = strings.TrimSpace(c.SceneGen.BaseURL)
	if c.SceneGen.BaseURL == "" {
		c.SceneGen.BaseURL = defaultSceneGenBaseURL
	}
	if c.SceneGen.APIKey == "" {
		if value, ok := os.LookupEnv("SCENEGEN_API_KEY"); ok {
			c.SceneGen.APIKey = strings.TrimSpace(value)
		}
	}
	if c.SceneGen.PollIntervalSeconds <= 0 {
		c.SceneGen.PollIntervalSeconds = defaultSceneGenPollInterval
	}
	if c.SceneGen.PollAttempts <= 0 {
		c.SceneGen.PollAttempts = defaultSceneGenPollAttempts
	}
	if c.SceneGen.MaxClipSeconds <= 0 {
		c.SceneGen.MaxClipSeconds = defaultSceneGenMaxClipSeconds
	}
	if c.SceneGen.RequestTimeout <= 0 {
		c.SceneGen.RequestTimeout = defaultSceneGenRequestTimeout
	}
	return nil
}

func (c *Config) normalizeNarration() error {
	c.Narration.BaseURL = strings.TrimSpace(c.Narration.BaseURL)
	if c.Narration.BaseURL == "" {
		c.Narration.BaseURL = defaultNarrationBaseURL
	}
	if c.Narration.APIKey == "" {
		if value, ok := os.LookupEnv("NARRATION_API_KEY"); ok {
			c.Narration.APIKey = strings.TrimSpace(value)
		}
	}
	c.Narration.DefaultVoice = strings.TrimSpace(c.Narration.DefaultVoice)
	if c.Narration.DefaultVoice == "" {
		c.Narration.DefaultVoice = defaultNarrationVoice
	}
	if c.Narration.RequestTimeout <= 0 {
		c.Narration.RequestTimeout = defaultNarrationTimeout
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	var err error
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultStorageLocalDir
	}
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	if strings.TrimSpace(c.Storage.CredentialsFile) != "" {
		if c.Storage.CredentialsFile, err = expandPath(c.Storage.CredentialsFile); err != nil {
			return fmt.Errorf("storage.credentials_file: %w", err)
		}
	}
	if c.Storage.UploadTimeout <= 0 {
		c.Storage.UploadTimeout = defaultStorageUploadTimeout
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Media.ThumbnailOffsetSeconds < 0 {
		c.Media.ThumbnailOffsetSeconds = defaultThumbnailOffsetSeconds
	}
}

func (c *Config) normalizeProgress() {
	c.Progress.RedisAddr = strings.TrimSpace(c.Progress.RedisAddr)
	if c.Progress.TTLSeconds <= 0 {
		c.Progress.TTLSeconds = defaultProgressTTLSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.JobTimeout <= 0 {
		c.Workflow.JobTimeout = defaultJobTimeout
	}
	if c.Workflow.RetryAttempts < 0 {
		c.Workflow.RetryAttempts = defaultRetryAttempts
	}
	if c.Workflow.RetryBackoff <= 0 {
		c.Workflow.RetryBackoff = defaultRetryBackoff
	}
	if c.Workflow.RetryBackoffMax < c.Workflow.RetryBackoff {
		c.Workflow.RetryBackoffMax = defaultRetryBackoffMax
	}
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

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}
