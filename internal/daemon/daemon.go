package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stillcut/internal/config"
	"stillcut/internal/logging"
	"stillcut/internal/notifications"
	"stillcut/internal/queue"
	"stillcut/internal/workflow"
)

// ErrAlreadyRunning is returned when another process holds the worker lock.
var ErrAlreadyRunning = errors.New("another stillcut worker is already running")

// Daemon coordinates the background worker and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the worker lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.release()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("stillcut worker started",
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
	)
	return nil
}

// Drain holds the lock while processing every queued job, then releases it.
func (d *Daemon) Drain(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	d.logger.Info("draining queue", logging.String("queue_db", d.store.Path()))
	return d.workflow.Drain(ctx)
}

// Stop stops background processing and releases the worker lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.release()
	d.running.Store(false)
	d.logger.Info("stillcut worker stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.workflow.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// TestNotification sends a test event through the configured backends.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	n := d.cfg.Notifications
	if strings.TrimSpace(n.NtfyTopic) == "" && strings.TrimSpace(n.NATSURL) == "" {
		return false, "no notification backend configured", nil
	}
	notifier := notifications.NewService(d.cfg, d.logger)
	defer notifier.Close()
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release worker lock", "lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next worker start may report a stale lock"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no worker is running"),
		)
	}
}

// LockHeld reports whether some process currently holds the worker lock.
// It is used by CLI commands to tell users whether queued jobs will run.
func LockHeld(cfg *config.Config) (bool, error) {
	probe := flock.New(cfg.LockPath())
	ok, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
