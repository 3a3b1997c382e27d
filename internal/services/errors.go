package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input rejected before a job is created.
	ErrValidation = errors.New("validation error")
	// ErrProvider marks a generation request rejected by a remote backend.
	ErrProvider = errors.New("provider failure")
	// ErrTimeout marks a poll loop or call that exceeded its attempt bound.
	ErrTimeout = errors.New("timeout")
	// ErrComposition marks a failed media engine invocation.
	ErrComposition = errors.New("composition failure")
	// ErrStorage marks a failed asset upload or delete.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound marks an operation referencing an unknown record.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the classification and human-readable message of a
// wrapped service error.
type ErrorDetails struct {
	Marker  error
	Message string
}

var markers = []error{
	ErrValidation,
	ErrProvider,
	ErrTimeout,
	ErrComposition,
	ErrStorage,
	ErrNotFound,
	ErrTransient,
}

// Details classifies err against the sentinel markers and strips the marker
// prefix from the message so job records read cleanly.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			details.Marker = marker
			prefix := marker.Error() + ": "
			details.Message = strings.TrimPrefix(details.Message, prefix)
			break
		}
	}
	return details
}

// IsRetryable reports whether the consumer should attempt the job again.
// Validation and not-found failures cannot succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotFound)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
