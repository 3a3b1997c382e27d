package scenegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"montage/internal/services"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:         "test-key",
		PollInterval:   time.Millisecond,
		PollAttempts:   5,
		MaxClipSeconds: 10,
	}, WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestGenerateSubmitsPollsAndDownloads(t *testing.T) {
	var polls atomic.Int32
	var submitted submitRequest

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		json.NewEncoder(w).Encode(submitResponse{ID: "task-1"})
	})
	mux.HandleFunc("GET /v1/generations/task-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(pollResponse{Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(pollResponse{Status: "succeeded", OutputURL: serverURL(r) + "/assets/clip.mp4"})
	})
	mux.HandleFunc("GET /assets/clip.mp4", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("clip-bytes"))
	})

	client := testClient(t, mux)
	dest := filepath.Join(t.TempDir(), "scene_1.mp4")
	path, err := client.Generate(context.Background(), Request{
		Prompt:          "a quiet harbor at dawn",
		DurationSeconds: 25, // above max, gets clamped
		AspectRatio:     "9:16",
		OutputPath:      dest,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path != dest {
		t.Fatalf("path = %q, want %q", path, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "clip-bytes" {
		t.Fatalf("clip contents = %q, %v", data, err)
	}
	if submitted.DurationSeconds != 10 {
		t.Fatalf("submitted duration = %v, want clamped 10", submitted.DurationSeconds)
	}
	if submitted.Width != 1080 || submitted.Height != 1920 {
		t.Fatalf("submitted dims = %dx%d, want 1080x1920", submitted.Width, submitted.Height)
	}
}

func TestGenerateProviderFailureIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(submitResponse{ID: "task-2"})
	})
	mux.HandleFunc("GET /v1/generations/task-2", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{Status: "failed", Error: "content policy"})
	})

	client := testClient(t, mux)
	_, err := client.Generate(context.Background(), Request{
		Prompt:     "prompt",
		OutputPath: filepath.Join(t.TempDir(), "scene.mp4"),
	})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("err = %v, want provider classification", err)
	}
}

func TestGeneratePollBudgetExhaustedIsTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(submitResponse{ID: "task-3"})
	})
	mux.HandleFunc("GET /v1/generations/task-3", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{Status: "processing"})
	})

	client := testClient(t, mux)
	_, err := client.Generate(context.Background(), Request{
		Prompt:     "prompt",
		OutputPath: filepath.Join(t.TempDir(), "scene.mp4"),
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err = %v, want timeout classification", err)
	}
}

func TestGenerateConsumesTransientPollErrors(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(submitResponse{ID: "task-4"})
	})
	mux.HandleFunc("GET /v1/generations/task-4", func(w http.ResponseWriter, r *http.Request) {
		switch polls.Add(1) {
		case 1:
			http.Error(w, "backend hiccup", http.StatusBadGateway)
		default:
			json.NewEncoder(w).Encode(pollResponse{Status: "completed", OutputURL: serverURL(r) + "/assets/clip.mp4"})
		}
	})
	mux.HandleFunc("GET /assets/clip.mp4", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("clip"))
	})

	client := testClient(t, mux)
	if _, err := client.Generate(context.Background(), Request{
		Prompt:     "prompt",
		OutputPath: filepath.Join(t.TempDir(), "scene.mp4"),
	}); err != nil {
		t.Fatalf("Generate should survive one bad poll: %v", err)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	_, err := client.Generate(context.Background(), Request{OutputPath: "/tmp/x.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation classification", err)
	}
}

func TestGenerateSubmitRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	client := testClient(t, mux)
	_, err := client.Generate(context.Background(), Request{
		Prompt:     "prompt",
		OutputPath: filepath.Join(t.TempDir(), "scene.mp4"),
	})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("err = %v, want provider classification", err)
	}
}

func TestResolveDimensions(t *testing.T) {
	cases := []struct {
		aspect string
		want   Dimensions
	}{
		{"16:9", Dimensions{1920, 1080}},
		{"9:16", Dimensions{1080, 1920}},
		{"1:1", Dimensions{1080, 1080}},
		{"3:4", Dimensions{1080, 1920}}, // 0.75 snaps to 9:16, the nearest ratio
		{"2:1", Dimensions{1920, 1080}}, // nearest to 16:9
		{"widescreen", Dimensions{1920, 1080}}, // unparseable falls back
		{"", Dimensions{1920, 1080}},
	}
	for _, tc := range cases {
		if got := ResolveDimensions(tc.aspect); got != tc.want {
			t.Errorf("ResolveDimensions(%q) = %+v, want %+v", tc.aspect, got, tc.want)
		}
	}
}

func serverURL(r *http.Request) string {
	return fmt.Sprintf("http://%s", r.Host)
}
