package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"stillcut/internal/logging"
	"stillcut/internal/notifications"
	"stillcut/internal/preflight"
	"stillcut/internal/queue"
	"stillcut/internal/render"
	"stillcut/internal/services"
)

// maxListedPairs caps how many pairs a failure log line names.
const maxListedPairs = 4

// Start recovers interrupted jobs and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.renderer == nil {
		m.mu.Unlock()
		return errors.New("workflow renderer not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.recoverInterrupted(runCtx)
	go m.runWorker(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion. A group
// in flight is cancelled and its job marked failed.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Drain processes queued jobs in the foreground until none remain.
func (m *Manager) Drain(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.renderer == nil {
		m.mu.Unlock()
		return errors.New("workflow renderer not configured")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.recoverInterrupted(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := m.store.NextQueued(ctx)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		if err := m.checkReady(ctx); err != nil {
			return err
		}
		if err := m.processJob(ctx, job); err != nil {
			return err
		}
	}
}

func (m *Manager) runWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := m.store.NextQueued(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logging.ErrorWithContext(m.logger, "failed to fetch next queued job", "queue_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.sleep(ctx, m.retryDelay)
			continue
		}
		if job == nil {
			m.waitForWork(ctx)
			continue
		}

		if err := m.checkReady(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logging.WarnWithContext(m.logger, "preflight failed; job left queued", "preflight_failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "queue paused until the check passes"),
				logging.String(logging.FieldErrorHint, "run stillcut deps"),
			)
			m.sleep(ctx, m.retryDelay)
			continue
		}
		if err := m.processJob(ctx, job); err != nil {
			m.sleep(ctx, m.retryDelay)
		}
	}
}

func (m *Manager) waitForWork(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) checkReady(ctx context.Context) error {
	if m.preflight == nil {
		return nil
	}
	if summary := preflight.Summary(m.preflight(ctx, m.cfg)); summary != "" {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight", summary, nil)
	}
	return nil
}

func (m *Manager) recoverInterrupted(ctx context.Context) {
	ids, err := m.store.FailInterrupted(ctx, queue.InterruptedReason)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "failed to recover interrupted jobs", "recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	for _, id := range ids {
		logging.WarnWithContext(m.logger, "job interrupted before completion", "job_interrupted",
			logging.Int64(logging.FieldJobID, id),
			logging.String(logging.FieldImpact, "job marked failed; its partial outputs were discarded"),
			logging.String(logging.FieldErrorHint, "queue the folders again"),
		)
		m.emit(Event{Type: EventFinished, JobID: id, Status: queue.StatusFailed, Message: queue.InterruptedReason})
	}
}

// processJob renders every group of job. Group failures are recorded and
// the loop continues; only shutdown stops it early. The returned error means
// the job could not be started at all.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	if err := m.store.MarkRunning(ctx, job.ID); err != nil {
		if errors.Is(err, queue.ErrNotQueued) {
			// Removed or claimed since NextQueued.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "failed to start job", "job_start_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return err
	}

	ctx = services.WithJobID(ctx, job.ID)
	// Final writes must land even when shutdown cancelled ctx.
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, m.logger)
	m.setActiveJob(job.ID)
	defer m.setActiveJob(0)
	m.sampler.Reset()

	started := time.Now()
	total := len(job.Groups)
	m.appendLog(persistCtx, job.ID, queue.LogInfo, "", fmt.Sprintf("started rendering %d group(s) into %s", total, job.OutDir))
	logger.Info("job started", logging.Int("groups", total), logging.String("out_dir", job.OutDir))
	m.emit(Event{Type: EventStarted, JobID: job.ID, Status: queue.StatusRunning, Groups: total})
	m.notify(ctx, notifications.EventJobStarted, notifications.Payload{"jobID": job.ID, "groups": total})

	groups := append([]queue.Group(nil), job.Groups...)
	if err := m.jobReady(job); err != nil {
		details := services.Details(err)
		m.appendLog(persistCtx, job.ID, queue.LogError, string(details.Kind), details.Message)
		m.finishJob(persistCtx, job, groups, 0, total, details.Message, started)
		return nil
	}
	policy := render.ExistingPolicy(job.OnExisting)

	succeeded, failed := 0, 0
	for i := range groups {
		if ctx.Err() != nil {
			m.interruptJob(persistCtx, job, groups, succeeded, failed)
			return nil
		}
		err := m.renderGroup(ctx, job, groups, i, policy, succeeded, failed)
		if err != nil && ctx.Err() != nil {
			groups[i].Status = queue.GroupFailed
			groups[i].Error = queue.InterruptedReason
			groups[i].ErrorKind = string(services.KindTransient)
			m.interruptJob(persistCtx, job, groups, succeeded, failed+1)
			return nil
		}
		if err != nil {
			failed++
		} else {
			succeeded++
		}
		if saveErr := m.store.SaveGroups(persistCtx, job.ID, groups, succeeded, failed); saveErr != nil {
			logger.Warn("failed to persist group outcome", logging.Error(saveErr))
		}
	}

	errorMessage := ""
	if failed > 0 {
		errorMessage = fmt.Sprintf("%d of %d group(s) failed", failed, total)
	}
	m.finishJob(persistCtx, job, groups, succeeded, failed, errorMessage, started)
	return nil
}

func (m *Manager) jobReady(job *queue.Job) error {
	if len(job.Groups) == 0 {
		return services.Wrap(services.ErrEmptyInput, "workflow", "start job", "job has no groups", nil)
	}
	if _, err := render.ParsePolicy(job.OnExisting); err != nil {
		return err
	}
	if result := preflight.CheckOutputDirectory(job.OutDir); !result.Passed {
		return services.Wrap(services.ErrValidation, "workflow", "check output folder", result.Detail, nil)
	}
	return nil
}

// renderGroup renders groups[i] and records its outcome in place.
func (m *Manager) renderGroup(ctx context.Context, job *queue.Job, groups []queue.Group, i int, policy render.ExistingPolicy, succeeded, failed int) error {
	total := len(groups)
	g := &groups[i]
	position := fmt.Sprintf("%d/%d", i+1, total)
	ctx = services.WithGroup(ctx, position)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)
	persistCtx := context.WithoutCancel(ctx)

	g.Status = queue.GroupRendering
	if err := m.store.SaveGroups(persistCtx, job.ID, groups, succeeded, failed); err != nil {
		logger.Warn("failed to persist group start", logging.Error(err))
	}
	m.reportProgress(ctx, job.ID, i, total, render.Progress{Message: "starting " + g.Label()})
	m.emit(Event{Type: EventGroupStarted, JobID: job.ID, Status: queue.StatusRunning, Groups: total,
		GroupIndex: i, GroupLabel: g.Label(), GroupStatus: g.Status, Percent: overallPercent(i, total, 0)})
	logger.Info("group started", logging.String("output", g.OutputFilename), logging.Int("pairs", len(g.Pairs)))

	segments := make([]render.Segment, len(g.Pairs))
	for j, p := range g.Pairs {
		segments[j] = render.Segment{Image: p.Image, Audio: p.Audio}
	}
	result, err := m.renderer.Render(ctx, render.Request{
		Segments:       segments,
		OutputFilename: g.OutputFilename,
		OutDir:         job.OutDir,
		OnExisting:     policy,
		Progress: func(p render.Progress) {
			m.reportProgress(ctx, job.ID, i, total, p)
		},
	})

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		details := services.Details(err)
		g.Status = queue.GroupFailed
		g.Error = details.Message
		g.ErrorKind = string(details.Kind)
		g.OutputPath = ""
		m.appendLog(persistCtx, job.ID, queue.LogError, g.ErrorKind,
			fmt.Sprintf("group %s %s failed (%s): %s", position, describeGroup(*g), details.Kind, err))
		logging.ErrorWithContext(logger, "group failed", "group_failed",
			logging.String(logging.FieldErrorKind, g.ErrorKind),
			logging.String("output", g.OutputFilename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, details.Hint),
		)
		m.emit(Event{Type: EventGroupFinished, JobID: job.ID, Status: queue.StatusRunning, Groups: total,
			GroupIndex: i, GroupLabel: g.Label(), GroupStatus: g.Status, Percent: overallPercent(i+1, total, 0),
			Message: details.Message})
		m.notify(ctx, notifications.EventGroupFailed, notifications.Payload{
			"jobID": job.ID,
			"group": g.Label(),
			"kind":  g.ErrorKind,
			"error": details.Message,
		})
		return err
	}

	g.OutputPath = result.OutputPath
	if result.Skipped {
		g.Status = queue.GroupSkipped
		m.appendLog(persistCtx, job.ID, queue.LogInfo, string(services.KindOutputExists),
			fmt.Sprintf("group %s %s skipped: %s already exists", position, g.Label(), result.OutputPath))
		logger.Info("group skipped", logging.String("output", result.OutputPath))
	} else {
		g.Status = queue.GroupSucceeded
		m.appendLog(persistCtx, job.ID, queue.LogInfo, "",
			fmt.Sprintf("group %s %s rendered to %s", position, g.Label(), result.OutputPath))
		logger.Info("group rendered", logging.String("output", result.OutputPath))
	}
	m.emit(Event{Type: EventGroupFinished, JobID: job.ID, Status: queue.StatusRunning, Groups: total,
		GroupIndex: i, GroupLabel: g.Label(), GroupStatus: g.Status, GroupPercent: 100,
		Percent: overallPercent(i+1, total, 0)})
	return nil
}

func (m *Manager) reportProgress(ctx context.Context, jobID int64, index, total int, p render.Progress) {
	overall := overallPercent(index, total, p.Percent)
	if err := m.store.UpdateProgress(ctx, jobID, queue.Progress{
		CurrentGroup: index,
		GroupPercent: p.Percent,
		Percent:      overall,
		Message:      p.Message,
	}); err != nil && ctx.Err() == nil {
		m.logger.Debug("progress update failed", logging.Error(err))
	}
	m.emit(Event{Type: EventProgress, JobID: jobID, Status: queue.StatusRunning, Groups: total,
		GroupIndex: index, GroupPercent: p.Percent, Percent: overall, Message: p.Message})
	if p.Step > 0 && m.sampler.ShouldLog(fmt.Sprintf("%d/%d", jobID, index), p.Percent) {
		logging.WithContext(ctx, m.logger).Info("group progress",
			logging.Float64("percent", p.Percent),
			logging.Float64("job_percent", overall),
			logging.String("message", p.Message),
		)
	}
}

func (m *Manager) interruptJob(ctx context.Context, job *queue.Job, groups []queue.Group, succeeded, failed int) {
	if err := m.store.SaveGroups(ctx, job.ID, groups, succeeded, failed); err != nil {
		m.logger.Warn("failed to persist group outcome", logging.Error(err))
	}
	m.appendLog(ctx, job.ID, queue.LogError, string(services.KindTransient), queue.InterruptedReason)
	if err := m.store.Finish(ctx, job.ID, queue.StatusFailed, queue.InterruptedReason); err != nil {
		logging.ErrorWithContext(m.logger, "failed to record interrupted job", "job_finish_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job is failed on the next worker start"),
		)
	}
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "job interrupted", "job_interrupted",
		logging.Int("succeeded", succeeded),
		logging.String(logging.FieldImpact, "remaining groups were not rendered"),
		logging.String(logging.FieldErrorHint, "queue the folders again"),
	)
	m.emit(Event{Type: EventFinished, JobID: job.ID, Status: queue.StatusFailed, Groups: len(groups), Message: queue.InterruptedReason})
}

func (m *Manager) finishJob(ctx context.Context, job *queue.Job, groups []queue.Group, succeeded, failed int, errorMessage string, started time.Time) {
	status := queue.TerminalStatus(succeeded, failed)
	logger := logging.WithContext(ctx, m.logger)
	if err := m.store.SaveGroups(ctx, job.ID, groups, succeeded, failed); err != nil {
		logger.Warn("failed to persist group outcome", logging.Error(err))
	}
	elapsed := time.Since(started).Round(time.Second)
	m.appendLog(ctx, job.ID, queue.LogInfo, "",
		fmt.Sprintf("finished %s: %d succeeded, %d failed in %s", status.Label(), succeeded, failed, elapsed))
	if err := m.store.Finish(ctx, job.ID, status, errorMessage); err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to record job outcome", "job_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	logger.Info("job finished",
		logging.String("status", status.Label()),
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Duration("elapsed", elapsed),
	)
	m.emit(Event{Type: EventFinished, JobID: job.ID, Status: status, Groups: len(groups), Percent: 100, Message: errorMessage})
	m.notify(ctx, notifications.EventJobCompleted, notifications.Payload{
		"jobID":     job.ID,
		"status":    status.Label(),
		"succeeded": succeeded,
		"failed":    failed,
		"duration":  elapsed.String(),
	})
}

func (m *Manager) appendLog(ctx context.Context, jobID int64, level queue.LogLevel, kind, message string) {
	if err := m.store.AppendLog(ctx, jobID, level, kind, message); err != nil {
		m.logger.Warn("failed to append job log", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
	}
}

func overallPercent(index, total int, groupPercent float64) float64 {
	if total <= 0 {
		return 0
	}
	return (float64(index) + groupPercent/100) / float64(total) * 100
}

// describeGroup names the files of a group for log lines.
func describeGroup(g queue.Group) string {
	parts := make([]string, 0, min(len(g.Pairs), maxListedPairs)+1)
	for i, p := range g.Pairs {
		if i == maxListedPairs {
			parts = append(parts, fmt.Sprintf("+%d more", len(g.Pairs)-maxListedPairs))
			break
		}
		parts = append(parts, filepath.Base(p.Image)+" + "+filepath.Base(p.Audio))
	}
	return fmt.Sprintf("[%s -> %s]", strings.Join(parts, ", "), g.OutputFilename)
}
