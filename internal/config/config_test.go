package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.LocalDir = filepath.Join(base, "public")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Workflow.Workers < 1 {
		t.Fatalf("expected at least one worker, got %d", cfg.Workflow.Workers)
	}
	if cfg.Media.ThumbnailOffsetSeconds != 2.0 {
		t.Fatalf("unexpected default thumbnail offset %v", cfg.Media.ThumbnailOffsetSeconds)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "montage.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(base, "work") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[scene_gen]
base_url = "https://scenes.test/v1/"
poll_interval_seconds = 2

[storage]
backend = "local"
local_dir = "` + filepath.Join(base, "public") + `"

[workflow]
workers = 4
job_timeout = 60

[logging]
format = "JSON"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != cfgPath {
		t.Fatalf("resolved path = %q, want %q", resolved, cfgPath)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Workflow.Workers)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format = %q, want json", cfg.Logging.Format)
	}
	if cfg.SceneGen.PollAttempts == 0 {
		t.Fatal("expected poll attempts to fall back to default")
	}
}

func TestValidateRejectsBadStorage(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Backend = "gcs"
	cfg.Storage.Bucket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for gcs backend without bucket")
	}
	if !strings.Contains(err.Error(), "storage.bucket") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBackoffInversion(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.RetryBackoff = 30
	cfg.Workflow.RetryBackoffMax = 5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted backoff bounds")
	}
}
