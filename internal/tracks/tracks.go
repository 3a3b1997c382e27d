// Package tracks resolves background track ids to audio files in the
// configured track library directory.
package tracks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"montage/internal/services"
)

// audioExtensions are probed in order when resolving a bare track id.
var audioExtensions = []string{".mp3", ".m4a", ".wav", ".flac", ".ogg"}

// Resolver maps track ids to files under a library directory. A track id is
// the file name without extension; ids must not escape the library.
type Resolver struct {
	dir string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{dir: strings.TrimSpace(dir)}
}

// Resolve returns the local path for a track id.
func (r *Resolver) Resolve(trackID string) (string, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return "", services.Wrap(services.ErrValidation, "composing", "resolve track", "track id required", nil)
	}
	if r.dir == "" {
		return "", services.Wrap(services.ErrNotFound, "composing", "resolve track", "no track library configured", nil)
	}
	if trackID != filepath.Base(trackID) || strings.Contains(trackID, "..") {
		return "", services.Wrap(services.ErrValidation, "composing", "resolve track",
			fmt.Sprintf("invalid track id %q", trackID), nil)
	}

	for _, ext := range audioExtensions {
		candidate := filepath.Join(r.dir, trackID+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "composing", "resolve track",
		fmt.Sprintf("track %q not in library", trackID), nil)
}
