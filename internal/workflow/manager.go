package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stillcut/internal/config"
	"stillcut/internal/deps"
	"stillcut/internal/logging"
	"stillcut/internal/notifications"
	"stillcut/internal/preflight"
	"stillcut/internal/queue"
	"stillcut/internal/render"
)

const encoderProbeTimeout = 10 * time.Second

// GroupRenderer turns one group into one output file.
type GroupRenderer interface {
	Render(ctx context.Context, req render.Request) (render.Result, error)
}

// PreflightFunc runs readiness checks before a job starts.
type PreflightFunc func(ctx context.Context, cfg *config.Config) []preflight.Result

// Manager coordinates job intake and the single render worker.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	renderer     GroupRenderer
	preflight    PreflightFunc
	pollInterval time.Duration
	retryDelay   time.Duration
	sampler      *logging.ProgressSampler

	wake chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	activeJob int64

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRenderer replaces the ffmpeg-backed renderer.
func WithRenderer(r GroupRenderer) ManagerOption {
	return func(m *Manager) { m.renderer = r }
}

// WithNotifier replaces the configured notification service.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithPollInterval overrides workflow.queue_poll_interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollInterval = d }
}

// WithPreflight replaces the checks run before each job. Nil disables them.
func WithPreflight(fn PreflightFunc) ManagerOption {
	return func(m *Manager) { m.preflight = fn }
}

// NewManager constructs a workflow manager with the configured renderer and
// notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Manager, error) {
	opts, err := render.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.VideoCodec == config.VideoCodecAuto {
		probeCtx, cancel := context.WithTimeout(context.Background(), encoderProbeTimeout)
		opts.VideoCodec = deps.ResolveVideoCodec(probeCtx, opts.FFmpegBinary, opts.VideoCodec)
		cancel()
	}
	return NewManagerWithOptions(cfg, store, logger,
		WithRenderer(render.New(opts, logger)),
		WithNotifier(notifications.NewService(cfg, logger)),
	), nil
}

// NewManagerWithOptions constructs a workflow manager with full configuration.
func NewManagerWithOptions(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewService(nil, nil),
		preflight:    preflight.RunAll,
		pollInterval: cfg.PollInterval(),
		retryDelay:   cfg.ErrorRetryInterval(),
		sampler:      logging.NewProgressSampler(25),
		wake:         make(chan struct{}, 1),
		subscribers:  make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.retryDelay <= 0 {
		m.retryDelay = m.pollInterval
	}
	return m
}

// Close releases the notifier.
func (m *Manager) Close() error {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Close()
}

func (m *Manager) signalWork() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
