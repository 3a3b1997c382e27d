package compose

import (
	"context"
	"log/slog"
	"math"
	"os"

	"montage/internal/logging"
	"montage/internal/media/ffmpeg"
	"montage/internal/media/ffprobe"
	"montage/internal/services"
)

// Engine is the media-engine surface the composer drives. *ffmpeg.Engine
// satisfies it; tests substitute fakes.
type Engine interface {
	Concat(ctx context.Context, inputs []string, output string, streamCopy bool) error
	Render(ctx context.Context, spec ffmpeg.RenderSpec) error
	ExtractFrame(ctx context.Context, input string, offsetSeconds float64, output string) error
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Result is what the composer hands back to the pipeline for upload.
type Result struct {
	MediaPath       string
	ThumbnailPath   string
	DurationSeconds float64
}

// Composer executes composition plans through a media engine.
type Composer struct {
	engine Engine
	logger *slog.Logger
}

func NewComposer(engine Engine, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Composer{engine: engine, logger: logger}
}

// Compose runs the plan: concat, optional render pass, duration re-probe, and
// thumbnail extraction. The final duration comes from the probe, not the
// plan's estimate.
func (c *Composer) Compose(ctx context.Context, plan Plan) (Result, error) {
	if err := c.engine.Concat(ctx, plan.ConcatInputs, plan.ConcatOutput, plan.ConcatStreamCopy); err != nil {
		return Result{}, services.Wrap(services.ErrComposition, "composing", "concat", "", err)
	}

	if plan.RenderNeeded {
		if err := c.engine.Render(ctx, plan.Render); err != nil {
			return Result{}, services.Wrap(services.ErrComposition, "composing", "render", "", err)
		}
		if err := os.Remove(plan.ConcatOutput); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove intermediate composition",
				logging.String("path", plan.ConcatOutput), logging.Error(err))
		}
	}

	probed, err := c.engine.Probe(ctx, plan.OutputPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrComposition, "composing", "probe", "", err)
	}
	duration := probed.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		duration = plan.PlannedDurationSeconds
	}

	offset := clampOffset(plan.ThumbnailOffsetSeconds, duration)
	if err := c.engine.ExtractFrame(ctx, plan.OutputPath, offset, plan.ThumbnailPath); err != nil {
		return Result{}, services.Wrap(services.ErrComposition, "composing", "thumbnail", "", err)
	}

	c.logger.Info("composition complete",
		logging.String("output", plan.OutputPath),
		logging.String("thumbnail", plan.ThumbnailPath),
		slog.Float64("duration_seconds", duration),
		slog.Bool("stream_copy", plan.ConcatStreamCopy),
		slog.Bool("render_pass", plan.RenderNeeded))

	return Result{
		MediaPath:       plan.OutputPath,
		ThumbnailPath:   plan.ThumbnailPath,
		DurationSeconds: duration,
	}, nil
}
