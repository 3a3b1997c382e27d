package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	TrackDir string `toml:"track_dir"`
}

// SceneGen contains configuration for the scene generation provider.
type SceneGen struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollAttempts        int    `toml:"poll_attempts"`
	MaxClipSeconds      int    `toml:"max_clip_seconds"`
	RequestTimeout      int    `toml:"request_timeout"`
}

// Narration contains configuration for the speech synthesis provider.
type Narration struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DefaultVoice   string `toml:"default_voice"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Storage contains configuration for the published asset store.
type Storage struct {
	Backend         string `toml:"backend"` // "gcs" or "local"
	Bucket          string `toml:"bucket"`
	PublicBaseURL   string `toml:"public_base_url"`
	CredentialsFile string `toml:"credentials_file"`
	LocalDir        string `toml:"local_dir"`
	UploadTimeout   int    `toml:"upload_timeout"`
}

// Media contains configuration for the external media engine binaries.
type Media struct {
	FFmpegBinary           string  `toml:"ffmpeg_binary"`
	FFprobeBinary          string  `toml:"ffprobe_binary"`
	ThumbnailOffsetSeconds float64 `toml:"thumbnail_offset_seconds"`
}

// Progress contains configuration for the advisory progress store.
type Progress struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Workflow contains configuration for worker timing, retries, and timeouts.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	JobTimeout         int `toml:"job_timeout"`
	RetryAttempts      int `toml:"retry_attempts"`
	RetryBackoff       int `toml:"retry_backoff"`
	RetryBackoffMax    int `toml:"retry_backoff_max"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Montage.
//
// Configuration sections by subsystem:
//   - Paths: working/log/track directories
//   - SceneGen: clip generation provider endpoint and poll policy
//   - Narration: speech synthesis provider endpoint and default voice
//   - Storage: published asset store (GCS bucket or local directory)
//   - Media: ffmpeg/ffprobe binaries and thumbnail offset
//   - Progress: advisory progress store (Redis) and entry TTL
//   - Workflow: worker pool size, polling, job timeout, and retry policy
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	SceneGen  SceneGen  `toml:"scene_gen"`
	Narration Narration `toml:"narration"`
	Storage   Storage   `toml:"storage"`
	Media     Media     `toml:"media"`
	Progress  Progress  `toml:"progress"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/montage/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("montage.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TrackDir) != "" {
		// Best-effort so the daemon can run without a track library mounted.
		_ = os.MkdirAll(c.Paths.TrackDir, 0o755)
	}
	if c.Storage.Backend == "local" && strings.TrimSpace(c.Storage.LocalDir) != "" {
		if err := os.MkdirAll(c.Storage.LocalDir, 0o755); err != nil {
			return fmt.Errorf("create storage directory %q: %w", c.Storage.LocalDir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the provided path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
