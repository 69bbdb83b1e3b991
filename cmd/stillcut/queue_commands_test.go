package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stillcut/internal/queue"
)

func TestAddListShowRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t,
		[]string{"001.png", "002.png", "003.png"},
		[]string{"001.wav", "002.wav", "003.wav", "004.wav"},
	)

	out, _, err := runCLI(t, []string{"add", imagesDir, audioDir, outDir, "--group-size", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued job #1: 3 pair(s) in 2 group(s)")
	requireContains(t, out, "Warning: 1 unmatched audio file dropped: 004.wav")
	requireContains(t, out, "No worker is running")

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Queued")
	requireContains(t, out, "images + audio")

	out, _, err = runCLI(t, []string{"show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Job #1")
	requireContains(t, out, "001-002.mp4")
	requireContains(t, out, "003.mp4")
	requireContains(t, out, "queued 3 pair(s) in 2 group(s)")

	if _, _, err := runCLI(t, []string{"remove", "1"}, env.configPath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list after remove: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t, []string{"a.png"}, []string{"a.wav"})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero group size", []string{"add", imagesDir, audioDir, outDir, "--group-size", "0"}, "group"},
		{"group size and all", []string{"add", imagesDir, audioDir, outDir, "--group-size", "2", "--all"}, "only one of"},
		{"missing folder", []string{"add", filepath.Join(env.baseDir, "nope"), audioDir, outDir}, "nope"},
		{"bad policy", []string{"add", imagesDir, audioDir, outDir, "--on-existing", "replace"}, "replace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			requireContains(t, err.Error(), tt.want)
		})
	}

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestAddJSONAndListFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t, []string{"a.png", "b.png"}, []string{"a.wav", "b.wav"})

	out, _, err := runCLI(t, []string{"add", imagesDir, audioDir, outDir, "--all", "--on-existing", "skip", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	var job queue.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job: %v\n%s", err, out)
	}
	if job.Status != queue.StatusQueued || job.OnExisting != "skip" || len(job.Groups) != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Groups[0].OutputFilename != "a-b.mp4" {
		t.Fatalf("unexpected output name %q", job.Groups[0].OutputFilename)
	}

	out, _, err = runCLI(t, []string{"list", "--status", "failed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty list, got %q", out)
	}

	if _, _, err := runCLI(t, []string{"list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestShowAndRemoveUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"show", "42"}, env.configPath); err == nil {
		t.Fatal("expected show of missing job to fail")
	}
	if _, _, err := runCLI(t, []string{"remove", "42"}, env.configPath); err == nil {
		t.Fatal("expected remove of missing job to fail")
	}
	if _, _, err := runCLI(t, []string{"show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestClearKeepsQueuedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t, []string{"a.png"}, []string{"a.wav"})
	if _, _, err := runCLI(t, []string{"add", imagesDir, audioDir, outDir}, env.configPath); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"clear"}, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cleared 0 finished job(s)")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Queued")
}

func TestPreviewDoesNotQueue(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t,
		[]string{"img1.png", "img2.png", "img10.png"},
		[]string{"a1.wav", "a2.wav", "a10.wav"},
	)

	out, _, err := runCLI(t, []string{"preview", imagesDir, audioDir, outDir, "--group-size", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "img1-img2.mp4")
	requireContains(t, out, "img10.mp4")
	requireContains(t, out, "3 pair(s) in 2 group(s)")
	if strings.Index(out, "img2.png") > strings.Index(out, "img10.png") {
		t.Fatalf("expected natural order, got\n%s", out)
	}

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("preview should not create the output folder: %v", err)
	}
}

func TestBuildPreviewRowsLabelsFirstPairOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	imagesDir, audioDir, outDir := env.media(t, []string{"a.png", "b.png"}, []string{"a.wav", "b.wav"})

	out, _, err := runCLI(t, []string{"preview", imagesDir, audioDir, outDir, "--all", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	var result previewResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if result.GroupMode != "all" || len(result.Groups) != 1 || len(result.Groups[0].Pairs) != 2 {
		t.Fatalf("unexpected preview: %+v", result)
	}
}
