package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"montage/internal/media/ffprobe"
)

// Engine invokes ffmpeg and ffprobe as external processes.
type Engine struct {
	ffmpegBin  string
	ffprobeBin string
}

// New constructs an engine around the given binaries. Empty values fall back
// to PATH lookup of the standard names.
func New(ffmpegBin, ffprobeBin string) *Engine {
	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffprobeBin = strings.TrimSpace(ffprobeBin)
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Engine{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin}
}

// AudioInput is one audio source feeding the output mix.
type AudioInput struct {
	Path string
	// Gain pre-scales the source; 1.0 passes it through unchanged.
	Gain float64
}

// TextOverlay renders text over the half-open interval [Start, End) seconds.
type TextOverlay struct {
	Text  string
	Start float64
	End   float64
}

// RenderSpec describes one ffmpeg render pass over a composed video input.
type RenderSpec struct {
	VideoInput  string
	AudioInputs []AudioInput
	Overlays    []TextOverlay
	// Shortest bounds the output by the shortest of video and mixed audio.
	Shortest bool
	Output   string
}

// Concat joins the inputs in order into output. With streamCopy the inputs
// are concatenated at the container level without re-encoding; otherwise the
// concat filter re-encodes. Source audio is dropped on both paths; output
// audio comes only from the render pass.
func (e *Engine) Concat(ctx context.Context, inputs []string, output string, streamCopy bool) error {
	if len(inputs) == 0 {
		return errors.New("ffmpeg concat: no inputs")
	}

	if streamCopy {
		listPath := output + ".concat.txt"
		if err := writeConcatList(listPath, inputs); err != nil {
			return err
		}
		defer os.Remove(listPath)
		return e.run(ctx, concatCopyArgs(listPath, output))
	}
	return e.run(ctx, concatFilterArgs(inputs, output))
}

func concatCopyArgs(listPath, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy", "-an", output,
	}
}

func concatFilterArgs(inputs []string, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, input := range inputs {
		args = append(args, "-i", input)
	}
	var graph strings.Builder
	for i := range inputs {
		fmt.Fprintf(&graph, "[%d:v]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[vout]", len(inputs))
	return append(args, "-filter_complex", graph.String(), "-map", "[vout]", "-an", output)
}

// Render executes one render pass: overlays, audio mix, and output bounds.
func (e *Engine) Render(ctx context.Context, spec RenderSpec) error {
	args, err := BuildRenderArgs(spec)
	if err != nil {
		return err
	}
	return e.run(ctx, args)
}

// ExtractFrame writes a single still frame taken at offsetSeconds.
func (e *Engine) ExtractFrame(ctx context.Context, input string, offsetSeconds float64, output string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(offsetSeconds),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	}
	return e.run(ctx, args)
}

// Probe inspects a media file.
func (e *Engine) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, e.ffprobeBin, path)
}

func (e *Engine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", firstArgHint(args), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func firstArgHint(args []string) string {
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			return filepath.Base(args[i+1])
		}
	}
	return ""
}

// BuildRenderArgs translates a RenderSpec into an ffmpeg argument list.
// Exposed for tests; the graph layout is deterministic given the spec.
func BuildRenderArgs(spec RenderSpec) ([]string, error) {
	if strings.TrimSpace(spec.VideoInput) == "" {
		return nil, errors.New("ffmpeg render: video input required")
	}
	if strings.TrimSpace(spec.Output) == "" {
		return nil, errors.New("ffmpeg render: output required")
	}
	if len(spec.AudioInputs) > 2 {
		return nil, fmt.Errorf("ffmpeg render: at most two audio inputs, got %d", len(spec.AudioInputs))
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", spec.VideoInput}
	for _, audio := range spec.AudioInputs {
		args = append(args, "-i", audio.Path)
	}

	var graph []string

	videoLabel := "[0:v]"
	if len(spec.Overlays) > 0 {
		var chain strings.Builder
		chain.WriteString("[0:v]")
		for i, overlay := range spec.Overlays {
			if i > 0 {
				chain.WriteString(",")
			}
			chain.WriteString(drawtextFilter(overlay))
		}
		chain.WriteString("[vout]")
		graph = append(graph, chain.String())
		videoLabel = "[vout]"
	}

	audioLabel := ""
	switch len(spec.AudioInputs) {
	case 1:
		graph = append(graph, fmt.Sprintf("[1:a]%s[aout]", gainFilter(spec.AudioInputs[0].Gain)))
		audioLabel = "[aout]"
	case 2:
		graph = append(graph,
			fmt.Sprintf("[2:a]%s[bg]", gainFilter(spec.AudioInputs[1].Gain)),
			fmt.Sprintf("[1:a]%s[nar]", gainFilter(spec.AudioInputs[0].Gain)),
			"[nar][bg]amix=inputs=2:duration=shortest:normalize=0[aout]",
		)
		audioLabel = "[aout]"
	}

	if len(graph) > 0 {
		args = append(args, "-filter_complex", strings.Join(graph, ";"))
	}

	args = append(args, "-map", videoLabel)
	if audioLabel != "" {
		args = append(args, "-map", audioLabel)
	} else {
		// Generated clips are silent; any stray source audio is dropped.
		args = append(args, "-an")
	}
	if spec.Shortest {
		args = append(args, "-shortest")
	}
	args = append(args, spec.Output)
	return args, nil
}

func gainFilter(gain float64) string {
	if gain == 1.0 {
		return "anull"
	}
	if gain < 0 {
		gain = 0
	}
	return fmt.Sprintf("volume=%s", formatSeconds(gain))
}

func drawtextFilter(overlay TextOverlay) string {
	return fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=48:borderw=2:x=(w-text_w)/2:y=h-text_h-60:enable='gte(t\\,%s)*lt(t\\,%s)'",
		escapeDrawtext(overlay.Text),
		formatSeconds(overlay.Start),
		formatSeconds(overlay.End),
	)
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}

func formatSeconds(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", value), "0"), ".")
}

func writeConcatList(path string, inputs []string) error {
	var sb strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("ffmpeg concat: resolve %q: %w", input, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("ffmpeg concat: write list: %w", err)
	}
	return nil
}
