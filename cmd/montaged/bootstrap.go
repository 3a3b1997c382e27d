package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"montage/internal/assets"
	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/media/ffmpeg"
	"montage/internal/pipeline"
	"montage/internal/progress"
	"montage/internal/providers/narration"
	"montage/internal/providers/scenegen"
	"montage/internal/queue"
	"montage/internal/tracks"
	"montage/internal/worker"
)

// daemon ties the wired services to a single-instance lock and the worker
// pool lifecycle.
type daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *worker.Manager
	lockPath string
	lock     *flock.Flock
	closers  []func() error
	running  bool
}

func newDaemon(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: filepath.Join(cfg.Paths.LogDir, "montaged.lock"),
	}
	d.lock = flock.New(d.lockPath)

	progressStore, err := d.buildProgressStore()
	if err != nil {
		return nil, err
	}
	assetStore, err := d.buildAssetStore(ctx)
	if err != nil {
		return nil, err
	}

	sceneClient := scenegen.NewClient(scenegen.Config{
		APIKey:         cfg.SceneGen.APIKey,
		PollInterval:   time.Duration(cfg.SceneGen.PollIntervalSeconds) * time.Second,
		PollAttempts:   cfg.SceneGen.PollAttempts,
		MaxClipSeconds: float64(cfg.SceneGen.MaxClipSeconds),
	}, sceneGenOptions(cfg)...)

	narrationClient := narration.NewClient(narration.Config{
		APIKey:       cfg.Narration.APIKey,
		DefaultVoice: cfg.Narration.DefaultVoice,
	}, narrationOptions(cfg)...)

	orchestrator := pipeline.New(pipeline.Deps{
		Store:     store,
		Progress:  progressStore,
		Scenes:    sceneClient,
		Narration: narrationClient,
		Tracks:    tracks.NewResolver(cfg.Paths.TrackDir),
		Assets:    assetStore,
		Engine:    ffmpeg.New(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary),
		Logger:    logger,
	}, pipeline.Options{
		WorkRoot:               cfg.Paths.WorkDir,
		ProgressTTL:            time.Duration(cfg.Progress.TTLSeconds) * time.Second,
		ThumbnailOffsetSeconds: cfg.Media.ThumbnailOffsetSeconds,
	})

	d.manager = worker.NewManager(cfg, store, orchestrator, logger)
	return d, nil
}

func (d *daemon) buildProgressStore() (progress.Store, error) {
	if addr := d.cfg.Progress.RedisAddr; addr != "" {
		d.logger.Info("using redis progress store", logging.String("addr", addr))
		store := progress.NewRedisStore(addr)
		d.closers = append(d.closers, store.Close)
		return store, nil
	}
	d.logger.Info("using in-memory progress store")
	return progress.NewMemoryStore(), nil
}

func (d *daemon) buildAssetStore(ctx context.Context) (assets.Store, error) {
	switch d.cfg.Storage.Backend {
	case "gcs":
		store, err := assets.NewGCSStore(ctx, assets.GCSConfig{
			Bucket:          d.cfg.Storage.Bucket,
			PublicBaseURL:   d.cfg.Storage.PublicBaseURL,
			CredentialsFile: d.cfg.Storage.CredentialsFile,
			UploadTimeout:   time.Duration(d.cfg.Storage.UploadTimeout) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, store.Close)
		return store, nil
	case "local":
		return assets.NewLocalStore(d.cfg.Storage.LocalDir, d.cfg.Storage.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", d.cfg.Storage.Backend)
	}
}

// Start acquires the single-instance lock and launches the worker pool.
func (d *daemon) Start(ctx context.Context) error {
	if d.running {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another montaged instance is already running")
	}
	if err := d.manager.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.running = true
	d.logger.Info("montaged started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the worker pool and releases the lock.
func (d *daemon) Stop() {
	if !d.running {
		return
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
}

// Close releases all held clients.
func (d *daemon) Close() error {
	d.Stop()
	var firstErr error
	for _, closer := range d.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sceneGenOptions(cfg *config.Config) []scenegen.Option {
	var opts []scenegen.Option
	if cfg.SceneGen.BaseURL != "" {
		opts = append(opts, scenegen.WithBaseURL(cfg.SceneGen.BaseURL))
	}
	if cfg.SceneGen.RequestTimeout > 0 {
		opts = append(opts, scenegen.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.SceneGen.RequestTimeout) * time.Second,
		}))
	}
	return opts
}

func narrationOptions(cfg *config.Config) []narration.Option {
	var opts []narration.Option
	if cfg.Narration.BaseURL != "" {
		opts = append(opts, narration.WithBaseURL(cfg.Narration.BaseURL))
	}
	if cfg.Narration.RequestTimeout > 0 {
		opts = append(opts, narration.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Narration.RequestTimeout) * time.Second,
		}))
	}
	return opts
}
