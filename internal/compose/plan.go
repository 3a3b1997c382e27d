package compose

import (
	"fmt"
	"path/filepath"
	"strings"

	"montage/internal/media/ffmpeg"
	"montage/internal/services"
)

// Clip is one generated scene clip entering the composition, in scene order.
type Clip struct {
	Path            string
	DurationSeconds float64
	Codec           string
	// OverlayText is rendered over this scene's time slice when non-empty.
	OverlayText string
}

// Input is everything the planner needs. All paths are local; resolution of
// remote assets happens before planning.
type Input struct {
	Clips []Clip
	// NarrationPath is the synthesized voiceover audio, empty when the job has
	// no script.
	NarrationPath string
	// BackgroundPath is the resolved background track, empty when none was
	// requested.
	BackgroundPath string
	// BackgroundVolume is the requested track volume in percent (0-100).
	BackgroundVolume int
	// ThumbnailOffsetSeconds is where the still frame is taken from.
	ThumbnailOffsetSeconds float64
	// WorkDir receives all intermediate and final artifacts.
	WorkDir string
}

// Plan is the deterministic composition recipe. It is never persisted; the
// composer executes it in one pass and the workspace is discarded afterwards.
type Plan struct {
	// ConcatInputs are the clip paths in scene order.
	ConcatInputs []string
	// ConcatStreamCopy concatenates without re-encoding; requires every clip
	// to share a codec.
	ConcatStreamCopy bool
	// RenderNeeded forces a second encode pass for overlays or audio.
	RenderNeeded bool
	Render       ffmpeg.RenderSpec
	// ConcatOutput is where the concat pass lands: the final output when no
	// render pass follows, an intermediate otherwise.
	ConcatOutput string
	OutputPath   string

	ThumbnailOffsetSeconds float64
	ThumbnailPath          string

	// PlannedDurationSeconds is the sum of clip durations. Overlay cues are
	// sliced from it; the real duration is re-probed after the render.
	PlannedDurationSeconds float64
}

// BuildPlan computes the composition recipe from the job's inputs. It is a
// pure function: identical input always yields an identical plan.
//
// Overlay cues divide the planned duration evenly across scenes, so a clip
// that came back from the provider slightly long or short shifts later cues
// with it. That drift is accepted; the alternative (cue per probed clip
// boundary) would make cues depend on provider behavior.
func BuildPlan(input Input) (Plan, error) {
	if len(input.Clips) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "composing", "plan", "no clips to compose", nil)
	}
	if strings.TrimSpace(input.WorkDir) == "" {
		return Plan{}, services.Wrap(services.ErrValidation, "composing", "plan", "workspace directory required", nil)
	}
	if input.BackgroundVolume < 0 || input.BackgroundVolume > 100 {
		return Plan{}, services.Wrap(services.ErrValidation, "composing", "plan",
			fmt.Sprintf("background volume %d out of range 0-100", input.BackgroundVolume), nil)
	}

	total := 0.0
	for i, clip := range input.Clips {
		if strings.TrimSpace(clip.Path) == "" {
			return Plan{}, services.Wrap(services.ErrValidation, "composing", "plan",
				fmt.Sprintf("clip %d has no path", i+1), nil)
		}
		if clip.DurationSeconds <= 0 {
			return Plan{}, services.Wrap(services.ErrValidation, "composing", "plan",
				fmt.Sprintf("clip %d has non-positive duration", i+1), nil)
		}
		total += clip.DurationSeconds
	}

	plan := Plan{
		ConcatInputs:           make([]string, len(input.Clips)),
		ConcatStreamCopy:       clipsShareCodec(input.Clips),
		OutputPath:             filepath.Join(input.WorkDir, "final.mp4"),
		ThumbnailPath:          filepath.Join(input.WorkDir, "thumbnail.jpg"),
		ThumbnailOffsetSeconds: clampOffset(input.ThumbnailOffsetSeconds, total),
		PlannedDurationSeconds: total,
	}
	for i, clip := range input.Clips {
		plan.ConcatInputs[i] = clip.Path
	}

	plan.Render.Overlays = overlayCues(input.Clips, total)
	plan.Render.AudioInputs = audioInputs(input)
	plan.Render.Shortest = len(plan.Render.AudioInputs) > 0
	plan.RenderNeeded = len(plan.Render.Overlays) > 0 || len(plan.Render.AudioInputs) > 0

	if plan.RenderNeeded {
		plan.ConcatOutput = filepath.Join(input.WorkDir, "composed.mp4")
		plan.Render.VideoInput = plan.ConcatOutput
		plan.Render.Output = plan.OutputPath
	} else {
		plan.ConcatOutput = plan.OutputPath
	}

	return plan, nil
}

// overlayCues assigns scene i the half-open interval [i*D/N, (i+1)*D/N) of
// the planned duration D; scenes without text get no cue.
func overlayCues(clips []Clip, total float64) []ffmpeg.TextOverlay {
	var cues []ffmpeg.TextOverlay
	n := float64(len(clips))
	for i, clip := range clips {
		text := strings.TrimSpace(clip.OverlayText)
		if text == "" {
			continue
		}
		cues = append(cues, ffmpeg.TextOverlay{
			Text:  text,
			Start: float64(i) * total / n,
			End:   float64(i+1) * total / n,
		})
	}
	return cues
}

// audioInputs orders narration before background so the mix labels stay
// stable. Background is pre-scaled by the requested volume; narration always
// passes through at unit gain.
func audioInputs(input Input) []ffmpeg.AudioInput {
	var inputs []ffmpeg.AudioInput
	if strings.TrimSpace(input.NarrationPath) != "" {
		inputs = append(inputs, ffmpeg.AudioInput{Path: input.NarrationPath, Gain: 1.0})
	}
	if strings.TrimSpace(input.BackgroundPath) != "" {
		inputs = append(inputs, ffmpeg.AudioInput{
			Path: input.BackgroundPath,
			Gain: float64(input.BackgroundVolume) / 100.0,
		})
	}
	return inputs
}

func clipsShareCodec(clips []Clip) bool {
	first := clips[0].Codec
	if first == "" {
		return false
	}
	for _, clip := range clips[1:] {
		if !strings.EqualFold(clip.Codec, first) {
			return false
		}
	}
	return true
}

func clampOffset(offset, duration float64) float64 {
	if offset < 0 {
		return 0
	}
	if offset > duration {
		return duration
	}
	return offset
}
