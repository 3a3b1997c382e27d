package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"montage/internal/media/ffmpeg"
	"montage/internal/media/ffprobe"
	"montage/internal/services"
)

type fakeEngine struct {
	concatCalls  int
	renderCalls  int
	extractCalls int
	probeCalls   int

	concatErr error
	renderErr error

	probeDuration string
	lastOffset    float64
	lastRender    ffmpeg.RenderSpec
}

func (f *fakeEngine) Concat(_ context.Context, inputs []string, output string, _ bool) error {
	f.concatCalls++
	if f.concatErr != nil {
		return f.concatErr
	}
	return os.WriteFile(output, []byte("video"), 0o644)
}

func (f *fakeEngine) Render(_ context.Context, spec ffmpeg.RenderSpec) error {
	f.renderCalls++
	f.lastRender = spec
	if f.renderErr != nil {
		return f.renderErr
	}
	return os.WriteFile(spec.Output, []byte("video"), 0o644)
}

func (f *fakeEngine) ExtractFrame(_ context.Context, _ string, offset float64, output string) error {
	f.extractCalls++
	f.lastOffset = offset
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

func (f *fakeEngine) Probe(_ context.Context, _ string) (ffprobe.Result, error) {
	f.probeCalls++
	return ffprobe.Result{Format: ffprobe.Format{Duration: f.probeDuration}}, nil
}

func writeClip(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

func TestComposerRunsRenderPassAndReprobes(t *testing.T) {
	workDir := t.TempDir()
	engine := &fakeEngine{probeDuration: "11.750"}
	composer := NewComposer(engine, nil)

	plan, err := BuildPlan(Input{
		Clips: []Clip{
			{Path: writeClip(t, workDir, "scene_1.mp4"), DurationSeconds: 6, Codec: "h264", OverlayText: "Hi"},
			{Path: writeClip(t, workDir, "scene_2.mp4"), DurationSeconds: 6, Codec: "h264"},
		},
		ThumbnailOffsetSeconds: 2,
		WorkDir:                workDir,
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	result, err := composer.Compose(context.Background(), plan)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if engine.concatCalls != 1 || engine.renderCalls != 1 || engine.extractCalls != 1 {
		t.Fatalf("calls = concat %d render %d extract %d", engine.concatCalls, engine.renderCalls, engine.extractCalls)
	}
	if result.DurationSeconds != 11.75 {
		t.Fatalf("duration = %v, want re-probed 11.75", result.DurationSeconds)
	}
	if result.MediaPath != plan.OutputPath || result.ThumbnailPath != plan.ThumbnailPath {
		t.Fatalf("result paths = %+v", result)
	}
	if _, err := os.Stat(plan.ConcatOutput); !os.IsNotExist(err) {
		t.Fatal("intermediate concat output should be removed after the render pass")
	}
}

func TestComposerSkipsRenderWhenPlanIsPassThrough(t *testing.T) {
	workDir := t.TempDir()
	engine := &fakeEngine{probeDuration: "6.0"}
	composer := NewComposer(engine, nil)

	plan, err := BuildPlan(Input{
		Clips:   []Clip{{Path: writeClip(t, workDir, "scene_1.mp4"), DurationSeconds: 6, Codec: "h264"}},
		WorkDir: workDir,
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	if _, err := composer.Compose(context.Background(), plan); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if engine.renderCalls != 0 {
		t.Fatal("pass-through plan must not render")
	}
}

func TestComposerClampsThumbnailToProbedDuration(t *testing.T) {
	workDir := t.TempDir()
	// Probe reports a shorter file than planned.
	engine := &fakeEngine{probeDuration: "1.2"}
	composer := NewComposer(engine, nil)

	plan, err := BuildPlan(Input{
		Clips:                  []Clip{{Path: writeClip(t, workDir, "scene_1.mp4"), DurationSeconds: 6, Codec: "h264"}},
		ThumbnailOffsetSeconds: 2,
		WorkDir:                workDir,
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	if _, err := composer.Compose(context.Background(), plan); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if engine.lastOffset != 1.2 {
		t.Fatalf("thumbnail offset = %v, want clamped 1.2", engine.lastOffset)
	}
}

func TestComposerWrapsEngineFailures(t *testing.T) {
	workDir := t.TempDir()
	engine := &fakeEngine{concatErr: fmt.Errorf("exit status 1")}
	composer := NewComposer(engine, nil)

	plan, err := BuildPlan(Input{
		Clips:   []Clip{{Path: writeClip(t, workDir, "scene_1.mp4"), DurationSeconds: 6, Codec: "h264"}},
		WorkDir: workDir,
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	_, err = composer.Compose(context.Background(), plan)
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("err = %v, want composition classification", err)
	}
}
