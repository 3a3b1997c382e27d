package main

import (
	"strings"

	"montage/internal/config"
	"montage/internal/progress"
	"montage/internal/queue"
)

// commandContext lazily loads configuration and shared handles for commands.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	return cfg, nil
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

// progressStore returns nil when no progress backend is configured; callers
// treat that as "progress unavailable".
func (c *commandContext) progressStore() (progress.Store, func() error) {
	if c.cfg == nil || strings.TrimSpace(c.cfg.Progress.RedisAddr) == "" {
		return nil, func() error { return nil }
	}
	store := progress.NewRedisStore(c.cfg.Progress.RedisAddr)
	return store, store.Close
}
