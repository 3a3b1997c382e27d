package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected local or gcs)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.JobTimeout < 1 {
		return errors.New("workflow.job_timeout must be at least 1 second")
	}
	if c.Workflow.RetryBackoffMax < c.Workflow.RetryBackoff {
		return errors.New("workflow.retry_backoff_max must not be below workflow.retry_backoff")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.TTLSeconds < 1 {
		return errors.New("progress.ttl_seconds must be at least 1")
	}
	return nil
}
