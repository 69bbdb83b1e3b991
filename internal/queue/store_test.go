package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"stillcut/internal/queue"
	"stillcut/internal/services"
	"stillcut/internal/testsupport"
)

func TestEnqueueAssignsIDsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/out", "a.mp4")
	second := testsupport.NewJob(t, store, "/out", "b.mp4", "c.mp4")
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", first.Status)
	}
	if len(second.Groups) != 2 || second.Groups[1].Index != 1 || second.Groups[1].Status != queue.GroupPending {
		t.Fatalf("unexpected groups: %+v", second.Groups)
	}
	if second.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	next, err := store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected job %d next, got %+v", first.ID, next)
	}
}

func TestEnqueueStoresInitialLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.NewJob{
		ImagesDir: "/i",
		AudioDir:  "/a",
		OutDir:    "/o",
		GroupMode: "all",
		Groups: []queue.Group{{
			OutputFilename: "x.mp4",
			Pairs:          []queue.Pair{{Image: "/i/x.jpg", Audio: "/a/x.mp3"}},
		}},
		Log: []queue.LogEntry{{Level: queue.LogWarn, Kind: "UnmatchedFiles", Message: "2 unmatched images: 4.jpg, 5.jpg"}},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.OnExisting != "error" {
		t.Fatalf("expected default on_existing, got %q", job.OnExisting)
	}
	if len(job.Log) != 1 || job.Log[0].Kind != "UnmatchedFiles" || job.Log[0].Level != queue.LogWarn {
		t.Fatalf("unexpected log: %+v", job.Log)
	}
}

func TestEnqueueRejectsEmptyGroups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Enqueue(context.Background(), queue.NewJob{ImagesDir: "/i", AudioDir: "/a", OutDir: "/o", GroupMode: "1"})
	if !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected EmptyInput, got %v", err)
	}
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestGetByIDMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/out", "a.mp4", "b.mp4")
	if err := store.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := store.MarkRunning(ctx, job.ID); !errors.Is(err, queue.ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued on second MarkRunning, got %v", err)
	}

	if err := store.UpdateProgress(ctx, job.ID, queue.Progress{CurrentGroup: 1, GroupPercent: 40, Percent: 70, Message: "segment 1/2"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	running, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if running.Status != queue.StatusRunning || running.StartedAt == nil {
		t.Fatalf("expected running with start time, got %+v", running)
	}
	if running.CurrentGroup != 1 || running.ProgressPercent != 70 || running.ProgressMessage != "segment 1/2" {
		t.Fatalf("unexpected progress: %+v", running)
	}

	groups := running.Groups
	groups[0].Status = queue.GroupSucceeded
	groups[0].OutputPath = "/out/a.mp4"
	groups[1].Status = queue.GroupFailed
	groups[1].Error = "corrupt"
	groups[1].ErrorKind = "CorruptInput"
	if err := store.SaveGroups(ctx, job.ID, groups, 1, 1); err != nil {
		t.Fatalf("SaveGroups: %v", err)
	}
	if err := store.Finish(ctx, job.ID, queue.TerminalStatus(1, 1), ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	done, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if done.Status != queue.StatusPartiallySucceeded {
		t.Fatalf("expected partially succeeded, got %s", done.Status)
	}
	if done.FinishedAt == nil || done.SucceededGroups != 1 || done.FailedGroups != 1 {
		t.Fatalf("unexpected finished job: %+v", done)
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %v", done.ProgressPercent)
	}
	paths := done.OutputPaths()
	if len(paths) != 1 || paths[0] != "/out/a.mp4" {
		t.Fatalf("unexpected output paths: %v", paths)
	}
	if err := store.Finish(ctx, job.ID, queue.StatusFailed, "again"); err == nil {
		t.Fatal("expected finishing a terminal job to fail")
	}
	if err := store.UpdateProgress(ctx, job.ID, queue.Progress{Percent: 5}); err != nil {
		t.Fatalf("UpdateProgress on finished job: %v", err)
	}
	after, _ := store.GetByID(ctx, job.ID)
	if after.ProgressPercent != 100 {
		t.Fatalf("progress changed after finish: %v", after.ProgressPercent)
	}
}

func TestFinishRejectsNonTerminalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/out", "a.mp4")

	if err := store.Finish(context.Background(), job.ID, queue.StatusRunning, ""); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "/out", "a.mp4")
	b := testsupport.NewJob(t, store, "/out", "b.mp4")
	if err := store.MarkRunning(ctx, a.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := store.AppendLog(ctx, b.ID, queue.LogInfo, "", "waiting"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("unexpected list order: %+v", all)
	}
	if len(all[1].Log) != 1 || all[1].Log[0].Message != "waiting" {
		t.Fatalf("expected log attached, got %+v", all[1].Log)
	}

	queued, err := store.List(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("List queued: %v", err)
	}
	if len(queued) != 1 || queued[0].ID != b.ID {
		t.Fatalf("unexpected queued list: %+v", queued)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusQueued] != 1 || stats[queue.StatusRunning] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestAppendLogKeepsOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "/out", "a.mp4")

	for _, msg := range []string{"one", "two", "  ", "three"} {
		if err := store.AppendLog(ctx, job.ID, queue.LogInfo, "", msg); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}
	logs, err := store.Logs(ctx, job.ID)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 3 || logs[0].Message != "one" || logs[2].Message != "three" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestRemoveOnlyQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	queued := testsupport.NewJob(t, store, "/out", "a.mp4")
	running := testsupport.NewJob(t, store, "/out", "b.mp4")
	if err := store.MarkRunning(ctx, running.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	if err := store.Remove(ctx, queued.ID); err != nil {
		t.Fatalf("Remove queued: %v", err)
	}
	if job, _ := store.GetByID(ctx, queued.ID); job != nil {
		t.Fatal("expected queued job to be removed")
	}

	err := store.Remove(ctx, running.ID)
	if !errors.Is(err, queue.ErrNotRemovable) {
		t.Fatalf("expected ErrNotRemovable, got %v", err)
	}
	if job, _ := store.GetByID(ctx, running.ID); job == nil || job.Status != queue.StatusRunning {
		t.Fatalf("running job must be untouched, got %+v", job)
	}

	err = store.Remove(ctx, 999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearHistoryKeepsActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	finished := testsupport.NewJob(t, store, "/out", "a.mp4")
	active := testsupport.NewJob(t, store, "/out", "b.mp4")
	pending := testsupport.NewJob(t, store, "/out", "c.mp4")
	for _, id := range []int64{finished.ID, active.ID} {
		if err := store.MarkRunning(ctx, id); err != nil {
			t.Fatalf("MarkRunning: %v", err)
		}
	}
	if err := store.AppendLog(ctx, finished.ID, queue.LogError, "CorruptInput", "boom"); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if err := store.Finish(ctx, finished.ID, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	removed, err := store.ClearHistory(ctx)
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != active.ID || jobs[1].ID != pending.ID {
		t.Fatalf("unexpected remaining jobs: %+v", jobs)
	}
	logs, err := store.Logs(ctx, finished.ID)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected logs to cascade, got %+v", logs)
	}
}

func TestFailInterruptedRecoversRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck := testsupport.NewJob(t, store, "/out", "a.mp4")
	waiting := testsupport.NewJob(t, store, "/out", "b.mp4")
	if err := store.MarkRunning(ctx, stuck.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	ids, err := store.FailInterrupted(ctx, "")
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if len(ids) != 1 || ids[0] != stuck.ID {
		t.Fatalf("unexpected ids: %v", ids)
	}
	job, _ := store.GetByID(ctx, stuck.ID)
	if job.Status != queue.StatusFailed || job.ErrorMessage != queue.InterruptedReason {
		t.Fatalf("unexpected recovered job: %+v", job)
	}
	if len(job.Log) != 1 || job.Log[0].Message != queue.InterruptedReason {
		t.Fatalf("expected interruption log, got %+v", job.Log)
	}
	other, _ := store.GetByID(ctx, waiting.ID)
	if other.Status != queue.StatusQueued {
		t.Fatalf("queued job changed: %s", other.Status)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	job := testsupport.NewJob(t, store, "/out", "a.mp4")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
	got, err := reopened.GetByID(context.Background(), job.ID)
	if err != nil || got == nil {
		t.Fatalf("expected job after reopen, got %+v, %v", got, err)
	}
}
