package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"montage/internal/assets"
	"montage/internal/media/ffmpeg"
	"montage/internal/media/ffprobe"
	"montage/internal/pipeline"
	"montage/internal/progress"
	"montage/internal/providers/scenegen"
	"montage/internal/queue"
	"montage/internal/services"
	"montage/internal/testsupport"
)

type fakeSceneGen struct {
	calls  atomic.Int32
	failAt int32 // 1-based call index that fails; 0 never fails
}

func (f *fakeSceneGen) Generate(_ context.Context, req scenegen.Request) (string, error) {
	call := f.calls.Add(1)
	if f.failAt != 0 && call == f.failAt {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "poll", "content policy", nil)
	}
	if err := os.WriteFile(req.OutputPath, []byte("clip"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type fakeNarration struct {
	calls atomic.Int32
}

func (f *fakeNarration) Synthesize(_ context.Context, _, _, outputPath string) (string, error) {
	f.calls.Add(1)
	if err := os.WriteFile(outputPath, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

type fakeTracks struct{}

func (fakeTracks) Resolve(trackID string) (string, error) {
	return "/tracks/" + trackID + ".mp3", nil
}

// fakeEngine reports four seconds per clip and a fixed duration for the
// composed output so the recorded duration provably comes from the re-probe.
type fakeEngine struct {
	finalDuration string
}

func (f *fakeEngine) Concat(_ context.Context, _ []string, output string, _ bool) error {
	return os.WriteFile(output, []byte("video"), 0o644)
}

func (f *fakeEngine) Render(_ context.Context, spec ffmpeg.RenderSpec) error {
	return os.WriteFile(spec.Output, []byte("video"), 0o644)
}

func (f *fakeEngine) ExtractFrame(_ context.Context, _ string, _ float64, output string) error {
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

func (f *fakeEngine) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	duration := "4.0"
	if filepath.Base(path) == "final.mp4" {
		duration = f.finalDuration
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "h264"}},
		Format:  ffprobe.Format{Duration: duration},
	}, nil
}

type harness struct {
	store     *queue.Store
	progress  *progress.MemoryStore
	scenes    *fakeSceneGen
	narration *fakeNarration
	orch      *pipeline.Orchestrator
	workRoot  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	local, err := assets.NewLocalStore(cfg.Storage.LocalDir, "https://media.example.com")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	h := &harness{
		store:     store,
		progress:  progress.NewMemoryStore(),
		scenes:    &fakeSceneGen{},
		narration: &fakeNarration{},
		workRoot:  cfg.Paths.WorkDir,
	}
	h.orch = pipeline.New(pipeline.Deps{
		Store:     store,
		Progress:  h.progress,
		Scenes:    h.scenes,
		Narration: h.narration,
		Tracks:    fakeTracks{},
		Assets:    local,
		Engine:    &fakeEngine{finalDuration: "12.5"},
	}, pipeline.Options{
		WorkRoot:               cfg.Paths.WorkDir,
		ProgressTTL:            time.Minute,
		ThumbnailOffsetSeconds: 2,
	})
	return h
}

func (h *harness) claimJob(t *testing.T, spec queue.JobSpec) *queue.Job {
	t.Helper()
	testsupport.NewJob(t, h.store, spec)
	job, err := h.store.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if job == nil {
		t.Fatal("no pending job to claim")
	}
	return job
}

func threeSceneSpec() queue.JobSpec {
	return queue.JobSpec{
		OwnerID:     "owner-1",
		AspectRatio: "16:9",
		Scenes: []queue.Scene{
			{Prompt: "sunrise over dunes", DurationSeconds: 4},
			{Prompt: "a caravan crossing", DurationSeconds: 4},
			{Prompt: "an oasis at night", DurationSeconds: 4},
		},
	}
}

func TestRunCompletesJobWithoutNarration(t *testing.T) {
	h := newHarness(t)
	job := h.claimJob(t, threeSceneSpec())

	if err := h.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := h.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.DurationSeconds != 12.5 {
		t.Fatalf("duration = %v, want re-probed 12.5", stored.DurationSeconds)
	}
	if stored.OutputURL == "" || stored.ThumbnailURL == "" {
		t.Fatalf("missing artifact urls: %+v", stored)
	}
	if stored.CompletedAt == nil {
		t.Fatal("completed_at not recorded")
	}
	if h.narration.calls.Load() != 0 {
		t.Fatal("voiceover stage must be skipped without a script")
	}
	if got := int(h.scenes.calls.Load()); got != 3 {
		t.Fatalf("scene generations = %d, want 3", got)
	}

	percent, ok, err := h.progress.Get(context.Background(), job.ID)
	if err != nil || !ok || percent != 100 {
		t.Fatalf("progress = %d, %v, %v; want 100", percent, ok, err)
	}
}

// recordingProgress keeps every published value so tests can assert ordering.
type recordingProgress struct {
	*progress.MemoryStore
	values []int
}

func (r *recordingProgress) Set(ctx context.Context, jobID int64, percent int, ttl time.Duration) error {
	r.values = append(r.values, percent)
	return r.MemoryStore.Set(ctx, jobID, percent, ttl)
}

func TestRunProgressIsMonotoneWithinBands(t *testing.T) {
	h := newHarness(t)
	recorder := &recordingProgress{MemoryStore: progress.NewMemoryStore()}
	h.orch = pipeline.New(pipeline.Deps{
		Store:     h.store,
		Progress:  recorder,
		Scenes:    h.scenes,
		Narration: h.narration,
		Tracks:    fakeTracks{},
		Assets:    mustLocalStore(t),
		Engine:    &fakeEngine{finalDuration: "12.5"},
	}, pipeline.Options{WorkRoot: h.workRoot})

	job := h.claimJob(t, threeSceneSpec())
	if err := h.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(recorder.values) < 5 {
		t.Fatalf("too few progress updates: %v", recorder.values)
	}
	for i := 1; i < len(recorder.values); i++ {
		if recorder.values[i] < recorder.values[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, recorder.values)
		}
	}
	// Three scene updates land inside the generation band before the
	// voiceover band is skipped past.
	want := []int{5, 21, 38, 55, 65}
	for i, v := range want {
		if recorder.values[i] != v {
			t.Fatalf("values[%d] = %d, want %d (all: %v)", i, recorder.values[i], v, recorder.values)
		}
	}
	if last := recorder.values[len(recorder.values)-1]; last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
}

func TestRunRunsVoiceoverStageWithScript(t *testing.T) {
	h := newHarness(t)
	spec := threeSceneSpec()
	spec.NarrationScript = "Across the desert, life finds a way."
	job := h.claimJob(t, spec)

	if err := h.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.narration.calls.Load() != 1 {
		t.Fatalf("narration calls = %d, want 1", h.narration.calls.Load())
	}
}

func TestRunSceneFailureFailsJobAndCleansWorkspace(t *testing.T) {
	h := newHarness(t)
	h.scenes.failAt = 2
	job := h.claimJob(t, threeSceneSpec())

	err := h.orch.Run(context.Background(), job)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("err = %v, want provider classification", err)
	}
	if !strings.Contains(err.Error(), "scene 2") {
		t.Fatalf("error %q should reference the failing scene", err)
	}

	stored, getErr := h.store.GetByID(context.Background(), job.ID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if stored.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "scene 2") {
		t.Fatalf("stored error %q should reference scene 2", stored.ErrorMessage)
	}

	entries, readErr := os.ReadDir(h.workRoot)
	if readErr != nil {
		t.Fatalf("read work root: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace leak: %v", entries)
	}
}

func TestRunMissingTrackFailsJob(t *testing.T) {
	h := newHarness(t)
	spec := threeSceneSpec()
	spec.BackgroundTrackID = "missing"
	spec.BackgroundVolume = 40
	job := h.claimJob(t, spec)

	// Swap the permissive fake for one that cannot find anything.
	h.orch = pipeline.New(pipeline.Deps{
		Store:     h.store,
		Progress:  h.progress,
		Scenes:    h.scenes,
		Narration: h.narration,
		Tracks:    failingTracks{},
		Assets:    mustLocalStore(t),
		Engine:    &fakeEngine{finalDuration: "12.5"},
	}, pipeline.Options{WorkRoot: h.workRoot})

	err := h.orch.Run(context.Background(), job)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not-found classification", err)
	}
	stored, _ := h.store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

type failingTracks struct{}

func (failingTracks) Resolve(trackID string) (string, error) {
	return "", services.Wrap(services.ErrNotFound, "composing", "resolve track",
		fmt.Sprintf("track %q not in library", trackID), nil)
}

func mustLocalStore(t *testing.T) *assets.LocalStore {
	t.Helper()
	store, err := assets.NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}
