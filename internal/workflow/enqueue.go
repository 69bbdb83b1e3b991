package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stillcut/internal/config"
	"stillcut/internal/logging"
	"stillcut/internal/notifications"
	"stillcut/internal/pairing"
	"stillcut/internal/queue"
	"stillcut/internal/render"
	"stillcut/internal/services"
)

// JobSpec is the caller's request to render two folders.
type JobSpec struct {
	ImagesDir string
	AudioDir  string
	OutDir    string
	// GroupMode is "all" or a decimal group size.
	GroupMode string
	// OnExisting overrides render.on_existing when set.
	OnExisting string
}

// Planned is a resolved JobSpec ready to be queued.
type Planned struct {
	Spec JobSpec
	Mode pairing.Mode
	Plan *pairing.Plan
}

// Plan validates spec and resolves its pairs and groups without touching
// the queue.
func (m *Manager) Plan(spec JobSpec) (*Planned, error) {
	mode, err := pairing.ParseMode(spec.GroupMode)
	if err != nil {
		return nil, err
	}

	resolved := spec
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"images folder", &resolved.ImagesDir},
		{"audio folder", &resolved.AudioDir},
		{"output folder", &resolved.OutDir},
	} {
		path, err := absPath(*field.value)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "enqueue", "resolve path",
				fmt.Sprintf("%s: %v", field.name, err), nil)
		}
		*field.value = path
	}
	if info, err := os.Stat(resolved.OutDir); err == nil && !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "enqueue", "check output folder",
			fmt.Sprintf("%s is not a directory", resolved.OutDir), nil)
	}

	policy := resolved.OnExisting
	if strings.TrimSpace(policy) == "" {
		policy = m.cfg.Render.OnExisting
	}
	parsed, err := render.ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	resolved.OnExisting = string(parsed)

	plan, err := pairing.Resolve(resolved.ImagesDir, resolved.AudioDir, mode)
	if err != nil {
		return nil, err
	}
	return &Planned{Spec: resolved, Mode: mode, Plan: plan}, nil
}

// Enqueue plans spec and appends it to the queue. Planning errors are
// returned synchronously and no job is created.
func (m *Manager) Enqueue(ctx context.Context, spec JobSpec) (int64, error) {
	planned, err := m.Plan(spec)
	if err != nil {
		return 0, err
	}

	newJob := queue.NewJob{
		ImagesDir:  planned.Spec.ImagesDir,
		AudioDir:   planned.Spec.AudioDir,
		OutDir:     planned.Spec.OutDir,
		GroupMode:  planned.Mode.String(),
		OnExisting: planned.Spec.OnExisting,
		Groups:     toQueueGroups(planned.Plan.Groups),
	}
	if unmatched := planned.Plan.Unmatched; unmatched != nil {
		newJob.Log = append(newJob.Log, queue.LogEntry{
			Level:   queue.LogWarn,
			Kind:    string(services.KindUnmatchedFiles),
			Message: unmatched.String(),
		})
	}
	newJob.Log = append(newJob.Log, queue.LogEntry{
		Level:   queue.LogInfo,
		Message: fmt.Sprintf("queued %d pair(s) in %d group(s)", len(planned.Plan.Pairs), len(planned.Plan.Groups)),
	})

	job, err := m.store.Enqueue(ctx, newJob)
	if err != nil {
		return 0, err
	}

	logger := logging.WithContext(services.WithJobID(ctx, job.ID), m.logger)
	if unmatched := planned.Plan.Unmatched; unmatched != nil {
		logging.WarnWithContext(logger, "unmatched files dropped", "unmatched_files",
			logging.String(logging.FieldErrorKind, string(services.KindUnmatchedFiles)),
			logging.Int("count", len(unmatched.Files)),
			logging.String("files", strings.Join(unmatched.Files, ", ")),
			logging.String(logging.FieldImpact, "surplus files are not rendered"),
			logging.String(logging.FieldErrorHint, "add the missing counterparts and queue again"),
		)
	}
	logger.Info("job queued",
		logging.Int("groups", len(job.Groups)),
		logging.Int("pairs", len(planned.Plan.Pairs)),
		logging.String("out_dir", job.OutDir),
	)

	m.signalWork()
	m.emit(Event{Type: EventQueued, JobID: job.ID, Status: job.Status, Groups: len(job.Groups)})
	m.notify(ctx, notifications.EventJobQueued, notifications.Payload{
		"jobID":  job.ID,
		"groups": len(job.Groups),
		"outDir": job.OutDir,
	})
	return job.ID, nil
}

// List returns every job, oldest first.
func (m *Manager) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return m.store.List(ctx, statuses...)
}

// Get returns one job or a NotFound error.
func (m *Manager) Get(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get", fmt.Sprintf("job %d not found", id), nil)
	}
	return job, nil
}

// Remove deletes a job that is still queued.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	if err := m.store.Remove(ctx, id); err != nil {
		return err
	}
	m.emit(Event{Type: EventRemoved, JobID: id})
	return nil
}

func toQueueGroups(groups []pairing.Group) []queue.Group {
	out := make([]queue.Group, len(groups))
	for i, g := range groups {
		pairs := make([]queue.Pair, len(g.Pairs))
		for j, p := range g.Pairs {
			pairs[j] = queue.Pair{Index: p.Index, Image: p.Image.Path, Audio: p.Audio.Path}
		}
		out[i] = queue.Group{
			Index:          i,
			OutputFilename: g.OutputFilename,
			Pairs:          pairs,
			Status:         queue.GroupPending,
		}
	}
	return out
}

func absPath(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("path is empty")
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
