// Package compose turns generated scene clips plus optional audio into a
// single output file.
//
// The work is split in two:
//   - BuildPlan: a pure function from inputs to a Plan (clip order, overlay
//     cues, audio mix, thumbnail offset)
//   - Composer: executes a Plan through the media engine and re-probes the
//     output for its final duration
//
// Keeping the plan pure makes the timing and mix decisions testable without
// touching ffmpeg.
package compose
