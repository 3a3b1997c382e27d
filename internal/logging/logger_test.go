package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"montage/internal/logging"
	"montage/internal/services"
)

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "composing")

	logging.WithContext(ctx, logger).Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"job_id":42`) {
		t.Fatalf("missing job_id in output: %s", out)
	}
	if !strings.Contains(out, `"stage":"composing"`) {
		t.Fatalf("missing stage in output: %s", out)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	// Must not panic.
	logger.Info("discarded")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestErrorAttrNil(t *testing.T) {
	attr := logging.Error(nil)
	if attr.Value.String() != "<nil>" {
		t.Fatalf("unexpected nil error attr: %v", attr)
	}
}
