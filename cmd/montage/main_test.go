package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	contents := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q

[storage]
backend = "local"
local_dir = %q
`,
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "media"),
	)
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("montage %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output := runCommand(t, "config", "init", "--path", target)
	if !strings.Contains(output, target) {
		t.Fatalf("output = %q", output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
}

func TestSubmitStatusJobsRoundtrip(t *testing.T) {
	configPath := writeTestConfig(t)

	specPath := filepath.Join(t.TempDir(), "spec.json")
	spec := `{
        "owner_id": "owner-1",
        "aspect_ratio": "16:9",
        "scenes": [
            {"prompt": "a harbor at dawn", "duration_seconds": 5},
            {"prompt": "boats heading out", "duration_seconds": 5, "overlay_text": "Departure"}
        ]
    }`
	if err := os.WriteFile(specPath, []byte(spec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	output := runCommand(t, "-c", configPath, "submit", specPath)
	if !strings.Contains(output, "Job 1 queued (2 scenes") {
		t.Fatalf("submit output = %q", output)
	}

	output = runCommand(t, "-c", configPath, "status", "1")
	if !strings.Contains(output, "Job 1: pending") {
		t.Fatalf("status output = %q", output)
	}
	if !strings.Contains(output, "Progress: 0%") {
		t.Fatalf("pending job should report zero progress, got %q", output)
	}

	output = runCommand(t, "-c", configPath, "jobs", "--owner", "owner-1")
	if !strings.Contains(output, "pending") || !strings.Contains(output, "1 of 1 job(s)") {
		t.Fatalf("jobs output = %q", output)
	}

	output = runCommand(t, "-c", configPath, "health")
	if !strings.Contains(output, "Total:      1") || !strings.Contains(output, "Pending:    1") {
		t.Fatalf("health output = %q", output)
	}
}

func TestJobsRejectsUnknownStatusListingValidOnes(t *testing.T) {
	configPath := writeTestConfig(t)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"-c", configPath, "jobs", "--status", "bogus"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown status filter")
	}
	if !strings.Contains(err.Error(), "pending") || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("error %q should list the valid statuses", err)
	}
}

func TestSubmitRejectsInvalidSpec(t *testing.T) {
	configPath := writeTestConfig(t)
	specPath := filepath.Join(t.TempDir(), "spec.json")
	if err := os.WriteFile(specPath, []byte(`{"owner_id": "o", "aspect_ratio": "16:9", "scenes": []}`), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"-c", configPath, "submit", specPath})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected validation error for empty scenes")
	}
}
