package compose

import (
	"errors"
	"math"
	"testing"

	"montage/internal/services"
)

func clip(path string, duration float64, overlay string) Clip {
	return Clip{Path: path, DurationSeconds: duration, Codec: "h264", OverlayText: overlay}
}

func TestBuildPlanOverlayIntervals(t *testing.T) {
	input := Input{
		Clips: []Clip{
			clip("/work/scene_1.mp4", 4, "First"),
			clip("/work/scene_2.mp4", 4, ""),
			clip("/work/scene_3.mp4", 4, "Last"),
		},
		ThumbnailOffsetSeconds: 2,
		WorkDir:                "/work",
	}

	plan, err := BuildPlan(input)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.PlannedDurationSeconds != 12 {
		t.Fatalf("planned duration = %v, want 12", plan.PlannedDurationSeconds)
	}
	if len(plan.Render.Overlays) != 2 {
		t.Fatalf("overlay count = %d, want 2 (middle scene has no text)", len(plan.Render.Overlays))
	}

	first := plan.Render.Overlays[0]
	if first.Text != "First" || first.Start != 0 || first.End != 4 {
		t.Fatalf("scene 0 cue = %+v, want [0,4)", first)
	}
	last := plan.Render.Overlays[1]
	if last.Text != "Last" || last.Start != 8 || last.End != 12 {
		t.Fatalf("scene 2 cue = %+v, want [8,12)", last)
	}
}

func TestBuildPlanOverlayIntervalsTrackDriftedDurations(t *testing.T) {
	// Provider clips came back long; cues still split the total evenly.
	input := Input{
		Clips: []Clip{
			clip("/work/scene_1.mp4", 5.5, "A"),
			clip("/work/scene_2.mp4", 4.5, "B"),
		},
		WorkDir: "/work",
	}

	plan, err := BuildPlan(input)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	cues := plan.Render.Overlays
	if len(cues) != 2 {
		t.Fatalf("overlay count = %d", len(cues))
	}
	if cues[0].Start != 0 || cues[0].End != 5 || cues[1].Start != 5 || cues[1].End != 10 {
		t.Fatalf("cues = %+v, want even halves of 10s", cues)
	}
}

func TestBuildPlanAudioMix(t *testing.T) {
	input := Input{
		Clips:            []Clip{clip("/work/scene_1.mp4", 6, "")},
		NarrationPath:    "/work/narration.mp3",
		BackgroundPath:   "/tracks/calm.mp3",
		BackgroundVolume: 40,
		WorkDir:          "/work",
	}

	plan, err := BuildPlan(input)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if !plan.RenderNeeded {
		t.Fatal("audio should force a render pass")
	}
	audio := plan.Render.AudioInputs
	if len(audio) != 2 {
		t.Fatalf("audio inputs = %d, want 2", len(audio))
	}
	if audio[0].Path != "/work/narration.mp3" || audio[0].Gain != 1.0 {
		t.Fatalf("narration input = %+v, want unit gain first", audio[0])
	}
	if audio[1].Path != "/tracks/calm.mp3" || math.Abs(audio[1].Gain-0.4) > 1e-9 {
		t.Fatalf("background input = %+v, want 0.4 gain", audio[1])
	}
	if !plan.Render.Shortest {
		t.Fatal("mixed output must be bounded by the shorter stream")
	}
}

func TestBuildPlanBackgroundOnlyStillScaled(t *testing.T) {
	plan, err := BuildPlan(Input{
		Clips:            []Clip{clip("/work/scene_1.mp4", 6, "")},
		BackgroundPath:   "/tracks/calm.mp3",
		BackgroundVolume: 25,
		WorkDir:          "/work",
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	audio := plan.Render.AudioInputs
	if len(audio) != 1 || audio[0].Gain != 0.25 {
		t.Fatalf("audio inputs = %+v, want single input at 0.25 gain", audio)
	}
}

func TestBuildPlanPassThroughWhenSilent(t *testing.T) {
	plan, err := BuildPlan(Input{
		Clips: []Clip{
			clip("/work/scene_1.mp4", 3, ""),
			clip("/work/scene_2.mp4", 3, ""),
		},
		WorkDir: "/work",
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.RenderNeeded {
		t.Fatal("no overlays or audio: concat result is the final output")
	}
	if !plan.ConcatStreamCopy {
		t.Fatal("matching codecs should stream-copy")
	}
	if plan.ConcatOutput != plan.OutputPath {
		t.Fatalf("concat output %q should be the final path %q", plan.ConcatOutput, plan.OutputPath)
	}
	if plan.Render.Shortest {
		t.Fatal("no audio: no shortest bound")
	}
}

func TestBuildPlanMixedCodecsDisableStreamCopy(t *testing.T) {
	plan, err := BuildPlan(Input{
		Clips: []Clip{
			{Path: "/work/scene_1.mp4", DurationSeconds: 3, Codec: "h264"},
			{Path: "/work/scene_2.mp4", DurationSeconds: 3, Codec: "vp9"},
		},
		WorkDir: "/work",
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.ConcatStreamCopy {
		t.Fatal("mismatched codecs must re-encode the concat")
	}
}

func TestBuildPlanThumbnailOffsetClamped(t *testing.T) {
	plan, err := BuildPlan(Input{
		Clips:                  []Clip{clip("/work/scene_1.mp4", 1.5, "")},
		ThumbnailOffsetSeconds: 2,
		WorkDir:                "/work",
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.ThumbnailOffsetSeconds != 1.5 {
		t.Fatalf("thumbnail offset = %v, want clamped 1.5", plan.ThumbnailOffsetSeconds)
	}
}

func TestBuildPlanRejectsBadInput(t *testing.T) {
	cases := map[string]Input{
		"no clips":       {WorkDir: "/work"},
		"no workdir":     {Clips: []Clip{clip("/work/scene_1.mp4", 3, "")}},
		"zero duration":  {Clips: []Clip{clip("/work/scene_1.mp4", 0, "")}, WorkDir: "/work"},
		"missing path":   {Clips: []Clip{{DurationSeconds: 3}}, WorkDir: "/work"},
		"volume too big": {Clips: []Clip{clip("/work/scene_1.mp4", 3, "")}, BackgroundVolume: 120, WorkDir: "/work"},
	}
	for name, input := range cases {
		if _, err := BuildPlan(input); !errors.Is(err, services.ErrValidation) {
			t.Errorf("%s: err = %v, want validation error", name, err)
		}
	}
}

func TestBuildPlanIsDeterministic(t *testing.T) {
	input := Input{
		Clips: []Clip{
			clip("/work/scene_1.mp4", 4, "One"),
			clip("/work/scene_2.mp4", 4, "Two"),
		},
		NarrationPath:    "/work/narration.mp3",
		BackgroundPath:   "/tracks/calm.mp3",
		BackgroundVolume: 50,
		WorkDir:          "/work",
	}
	first, err := BuildPlan(input)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	second, err := BuildPlan(input)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(first.Render.Overlays) != len(second.Render.Overlays) ||
		first.ConcatOutput != second.ConcatOutput ||
		first.PlannedDurationSeconds != second.PlannedDurationSeconds {
		t.Fatal("identical input must yield an identical plan")
	}
}
