package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"montage/internal/assets"
	"montage/internal/compose"
	"montage/internal/logging"
	"montage/internal/progress"
	"montage/internal/providers/scenegen"
	"montage/internal/queue"
	"montage/internal/services"
)

// SceneGenerator produces one local clip per scene.
type SceneGenerator interface {
	Generate(ctx context.Context, req scenegen.Request) (string, error)
}

// NarrationSynthesizer renders a script into a local audio file.
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, text, voice, outputPath string) (string, error)
}

// TrackResolver maps a background track id to a local audio path.
type TrackResolver interface {
	Resolve(trackID string) (string, error)
}

// Deps are the collaborators the orchestrator drives. All external systems
// sit behind these interfaces.
type Deps struct {
	Store     *queue.Store
	Progress  progress.Store
	Scenes    SceneGenerator
	Narration NarrationSynthesizer
	Tracks    TrackResolver
	Assets    assets.Store
	Engine    compose.Engine
	Logger    *slog.Logger
}

// Options tune orchestrator behavior.
type Options struct {
	// WorkRoot hosts per-job workspace directories.
	WorkRoot string
	// ProgressTTL bounds how long progress entries outlive their last update.
	ProgressTTL time.Duration
	// ThumbnailOffsetSeconds is where the still frame is taken from.
	ThumbnailOffsetSeconds float64
}

// Progress bands per stage. Within generating_scenes the band is subdivided
// evenly by scene count; a job without narration jumps the voiceover band.
const (
	progressScenesStart    = 5
	progressScenesEnd      = 55
	progressVoiceoverEnd   = 65
	progressComposingEnd   = 85
	progressProcessingEnd  = 99
	progressCompleted      = 100
	defaultProgressTTL     = time.Hour
	defaultThumbnailOffset = 2.0
)

// Orchestrator walks one claimed job through the pipeline stages, persisting
// status transitions and publishing advisory progress along the way.
type Orchestrator struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if opts.ProgressTTL <= 0 {
		opts.ProgressTTL = defaultProgressTTL
	}
	if opts.ThumbnailOffsetSeconds <= 0 {
		opts.ThumbnailOffsetSeconds = defaultThumbnailOffset
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// Run executes one pipeline attempt for a claimed job. On failure the job is
// persisted as failed and the error returned so the consumer can decide on a
// retry. The workspace directory is removed on every exit path.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.deps.Logger).With(slog.Int(logging.FieldAttempt, job.Attempts))

	workspace, err := o.createWorkspace(job)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}
	defer func() {
		if removeErr := os.RemoveAll(workspace); removeErr != nil {
			logger.Warn("failed to remove job workspace", logging.String("workspace", workspace), logging.Error(removeErr))
		}
	}()

	logger.Info("pipeline attempt started", logging.String("workspace", workspace))

	clips, err := o.generateScenes(ctx, logger, job, workspace)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}

	narrationPath, err := o.generateVoiceover(ctx, logger, job, workspace)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}

	result, err := o.composeOutput(ctx, logger, job, workspace, clips, narrationPath)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}

	mediaURL, thumbnailURL, err := o.publish(ctx, logger, job, result)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}

	job.SetCompleted(mediaURL, thumbnailURL, result.DurationSeconds)
	if err := o.deps.Store.Update(ctx, job); err != nil {
		return o.fail(ctx, logger, job, err)
	}
	o.setProgress(ctx, logger, job.ID, progressCompleted)

	logger.Info("pipeline attempt completed",
		logging.String("output_url", mediaURL),
		slog.Float64("duration_seconds", result.DurationSeconds))
	return nil
}

func (o *Orchestrator) generateScenes(ctx context.Context, logger *slog.Logger, job *queue.Job, workspace string) ([]compose.Clip, error) {
	ctx = services.WithStage(ctx, string(queue.StatusGeneratingScenes))
	o.setProgress(ctx, logger, job.ID, progressScenesStart)

	total := len(job.Scenes)
	band := progressScenesEnd - progressScenesStart
	clips := make([]compose.Clip, 0, total)

	for i, scene := range job.Scenes {
		sceneLogger := logger.With(slog.Int(logging.FieldScene, i+1))
		sceneLogger.Info("generating scene clip")

		outputPath := filepath.Join(workspace, fmt.Sprintf("scene_%03d.mp4", i+1))
		clipPath, err := o.deps.Scenes.Generate(ctx, scenegen.Request{
			Prompt:          scene.Prompt,
			DurationSeconds: scene.DurationSeconds,
			AspectRatio:     job.AspectRatio,
			SourceImage:     scene.SourceImage,
			Style:           job.Style,
			OutputPath:      outputPath,
		})
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i+1, err)
		}

		duration, codec := o.probeClip(ctx, sceneLogger, clipPath, scene.DurationSeconds)
		clips = append(clips, compose.Clip{
			Path:            clipPath,
			DurationSeconds: duration,
			Codec:           codec,
			OverlayText:     scene.OverlayText,
		})
		o.setProgress(ctx, logger, job.ID, progressScenesStart+band*(i+1)/total)
	}
	return clips, nil
}

// probeClip measures what the provider actually delivered. A failed probe is
// not fatal; the requested duration stands in and stream-copy is disabled by
// the empty codec.
func (o *Orchestrator) probeClip(ctx context.Context, logger *slog.Logger, path string, requested float64) (float64, string) {
	probed, err := o.deps.Engine.Probe(ctx, path)
	if err != nil {
		logger.Warn("clip probe failed, using requested duration", logging.Error(err))
		return requested, ""
	}
	duration := probed.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		duration = requested
	}
	return duration, probed.VideoCodec()
}

func (o *Orchestrator) generateVoiceover(ctx context.Context, logger *slog.Logger, job *queue.Job, workspace string) (string, error) {
	if !job.HasNarration() {
		o.setProgress(ctx, logger, job.ID, progressVoiceoverEnd)
		return "", nil
	}

	ctx = services.WithStage(ctx, string(queue.StatusGeneratingVoiceover))
	if err := o.transition(ctx, job, queue.StatusGeneratingVoiceover); err != nil {
		return "", err
	}
	logger.Info("synthesizing narration")

	outputPath := filepath.Join(workspace, "narration.mp3")
	path, err := o.deps.Narration.Synthesize(ctx, job.NarrationScript, job.VoiceID, outputPath)
	if err != nil {
		return "", err
	}
	o.setProgress(ctx, logger, job.ID, progressVoiceoverEnd)
	return path, nil
}

func (o *Orchestrator) composeOutput(ctx context.Context, logger *slog.Logger, job *queue.Job, workspace string, clips []compose.Clip, narrationPath string) (compose.Result, error) {
	ctx = services.WithStage(ctx, string(queue.StatusComposing))
	if err := o.transition(ctx, job, queue.StatusComposing); err != nil {
		return compose.Result{}, err
	}

	backgroundPath := ""
	if strings.TrimSpace(job.BackgroundTrackID) != "" {
		resolved, err := o.deps.Tracks.Resolve(job.BackgroundTrackID)
		if err != nil {
			return compose.Result{}, err
		}
		backgroundPath = resolved
	}

	plan, err := compose.BuildPlan(compose.Input{
		Clips:                  clips,
		NarrationPath:          narrationPath,
		BackgroundPath:         backgroundPath,
		BackgroundVolume:       job.BackgroundVolume,
		ThumbnailOffsetSeconds: o.opts.ThumbnailOffsetSeconds,
		WorkDir:                workspace,
	})
	if err != nil {
		return compose.Result{}, err
	}

	logger.Info("composing output",
		slog.Int("clips", len(plan.ConcatInputs)),
		slog.Bool("stream_copy", plan.ConcatStreamCopy),
		slog.Bool("render_pass", plan.RenderNeeded))

	composer := compose.NewComposer(o.deps.Engine, logger)
	result, err := composer.Compose(ctx, plan)
	if err != nil {
		return compose.Result{}, err
	}
	o.setProgress(ctx, logger, job.ID, progressComposingEnd)
	return result, nil
}

// publish uploads the composed media and thumbnail concurrently. On a partial
// failure the asset that did land is deleted so retries start clean.
func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, job *queue.Job, result compose.Result) (string, string, error) {
	ctx = services.WithStage(ctx, string(queue.StatusProcessing))
	if err := o.transition(ctx, job, queue.StatusProcessing); err != nil {
		return "", "", err
	}
	logger.Info("uploading artifacts")

	var mediaURL, thumbnailURL string
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		url, err := o.deps.Assets.Upload(groupCtx, result.MediaPath, job.ID, assets.KindMedia)
		mediaURL = url
		return err
	})
	group.Go(func() error {
		url, err := o.deps.Assets.Upload(groupCtx, result.ThumbnailPath, job.ID, assets.KindThumbnail)
		thumbnailURL = url
		return err
	})
	if err := group.Wait(); err != nil {
		for _, uploaded := range []string{mediaURL, thumbnailURL} {
			if uploaded == "" {
				continue
			}
			if deleteErr := o.deps.Assets.Delete(ctx, uploaded); deleteErr != nil {
				logger.Warn("failed to delete partial upload", logging.String("url", uploaded), logging.Error(deleteErr))
			}
		}
		return "", "", err
	}

	o.setProgress(ctx, logger, job.ID, progressProcessingEnd)
	return mediaURL, thumbnailURL, nil
}

func (o *Orchestrator) createWorkspace(job *queue.Job) (string, error) {
	root := o.opts.WorkRoot
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	workspace := filepath.Join(root, fmt.Sprintf("job-%d-attempt-%d", job.ID, job.Attempts))
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return workspace, nil
}

func (o *Orchestrator) transition(ctx context.Context, job *queue.Job, status queue.Status) error {
	job.Status = status
	return o.deps.Store.Update(ctx, job)
}

// setProgress is advisory; failures are logged and swallowed so a flaky
// progress backend never fails a job.
func (o *Orchestrator) setProgress(ctx context.Context, logger *slog.Logger, jobID int64, percent int) {
	if o.deps.Progress == nil {
		return
	}
	if err := o.deps.Progress.Set(ctx, jobID, percent, o.opts.ProgressTTL); err != nil {
		logger.Warn("failed to publish progress", slog.Int("percent", percent), logging.Error(err))
	}
}

// fail persists the terminal failure and hands the classified error back to
// the consumer. Update errors are logged, not returned: the pipeline error is
// the one worth keeping. The write runs outside the attempt's cancellation so
// a timed-out job still lands in the failed state.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, cause error) error {
	details := services.Details(cause)
	job.SetFailed(details.Message)
	if err := o.deps.Store.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	logger.Error("pipeline attempt failed", logging.Error(cause))
	return cause
}
