// Package ffmpeg wraps the ffmpeg binary for the render operations the
// pipeline needs: clip concatenation, overlay/audio render passes, and
// thumbnail frame extraction.
//
// Key types:
//   - Engine: process runner bound to configured ffmpeg/ffprobe binaries
//   - RenderSpec: declarative description of one render pass
//
// Argument lists are built deterministically so they can be verified without
// executing the binary.
package ffmpeg
