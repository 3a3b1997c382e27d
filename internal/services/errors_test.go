package services_test

import (
	"errors"
	"fmt"
	"testing"

	"montage/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	underlying := errors.New("connection refused")
	err := services.Wrap(services.ErrProvider, "generating_scenes", "submit", "scene 2", underlying)

	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider marker, got %v", err)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "composing", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrTimeout, "generating_scenes", "poll", "scene 1", nil)
	details := services.Details(err)
	if details.Marker != services.ErrTimeout {
		t.Fatalf("marker = %v, want timeout", details.Marker)
	}
	want := "generating_scenes: poll: scene 1"
	if details.Message != want {
		t.Fatalf("message = %q, want %q", details.Message, want)
	}
}

func TestDetailsUnclassified(t *testing.T) {
	err := fmt.Errorf("plain failure")
	details := services.Details(err)
	if details.Marker != nil {
		t.Fatalf("expected nil marker, got %v", details.Marker)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrValidation, "", "", "bad spec", nil), false},
		{services.Wrap(services.ErrNotFound, "", "", "missing track", nil), false},
		{services.Wrap(services.ErrProvider, "", "", "rejected", nil), true},
		{services.Wrap(services.ErrTimeout, "", "", "poll bound", nil), true},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
