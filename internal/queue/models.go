package queue

import (
	"fmt"
	"strings"
	"time"

	"montage/internal/services"
)

// Status represents the lifecycle of a generation job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusGeneratingScenes    Status = "generating_scenes"
	StatusGeneratingVoiceover Status = "generating_voiceover"
	StatusComposing           Status = "composing"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusGeneratingScenes,
	StatusGeneratingVoiceover,
	StatusComposing,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsProcessing reports whether the status reflects an in-flight stage.
func (s Status) IsProcessing() bool {
	switch s {
	case StatusGeneratingScenes, StatusGeneratingVoiceover, StatusComposing, StatusProcessing:
		return true
	default:
		return false
	}
}

// Scene is one input unit describing a single generated clip. Immutable once
// the job is created.
type Scene struct {
	Prompt          string  `json:"prompt"`
	DurationSeconds float64 `json:"duration_seconds"`
	SourceImage     string  `json:"source_image,omitempty"`
	OverlayText     string  `json:"overlay_text,omitempty"`
}

// JobSpec is the immutable input of a generation job.
type JobSpec struct {
	OwnerID           string
	EntityID          string
	Scenes            []Scene
	Style             string
	AspectRatio       string
	NarrationScript   string
	VoiceID           string
	BackgroundTrackID string
	BackgroundVolume  int
	Priority          int
}

// Validate rejects malformed specs before a job row is created.
func (s *JobSpec) Validate() error {
	if len(s.Scenes) == 0 {
		return services.Wrap(services.ErrValidation, "", "create job", "at least one scene is required", nil)
	}
	for i, scene := range s.Scenes {
		if strings.TrimSpace(scene.Prompt) == "" {
			return services.Wrap(services.ErrValidation, "", "create job", sceneRef(i)+": prompt is required", nil)
		}
		if scene.DurationSeconds <= 0 {
			return services.Wrap(services.ErrValidation, "", "create job", sceneRef(i)+": duration must be positive", nil)
		}
	}
	if s.BackgroundVolume < 0 || s.BackgroundVolume > 100 {
		return services.Wrap(services.ErrValidation, "", "create job", "background volume must be between 0 and 100", nil)
	}
	if strings.TrimSpace(s.AspectRatio) == "" {
		return services.Wrap(services.ErrValidation, "", "create job", "aspect ratio is required", nil)
	}
	return nil
}

func sceneRef(index int) string {
	return fmt.Sprintf("scene %d", index+1)
}

// Job represents a generation job persisted in SQLite.
type Job struct {
	ID                int64
	OwnerID           string
	EntityID          string
	Scenes            []Scene
	Style             string
	AspectRatio       string
	NarrationScript   string
	VoiceID           string
	BackgroundTrackID string
	BackgroundVolume  int
	Priority          int
	Status            Status
	Attempts          int
	OutputURL         string
	ThumbnailURL      string
	DurationSeconds   float64
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// HasNarration reports whether the voiceover stage applies to this job.
func (j *Job) HasNarration() bool {
	return strings.TrimSpace(j.NarrationScript) != ""
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
}

// SetCompleted records output references, measured duration, and the
// completion timestamp.
func (j *Job) SetCompleted(outputURL, thumbnailURL string, durationSeconds float64) {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.OutputURL = outputURL
	j.ThumbnailURL = thumbnailURL
	j.DurationSeconds = durationSeconds
	j.ErrorMessage = ""
	j.CompletedAt = &now
}
