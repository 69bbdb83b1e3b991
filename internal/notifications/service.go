package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stillcut/internal/config"
	"stillcut/internal/logging"
)

const (
	userAgent      = "stillcut/0.1.0"
	defaultTimeout = 10 * time.Second
)

// Service defines the notification surface exposed to the workflow.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds a notification service from cfg. Backends that fail to
// initialise are logged and skipped.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	n := cfg.Notifications

	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var backends []Service
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		backends = append(backends, newNtfyService(topic, timeout))
	}
	if url := strings.TrimSpace(n.NATSURL); url != "" {
		svc, err := newNATSService(url, n.NATSSubject, timeout, logger)
		if err != nil {
			logging.WarnWithContext(logger, "nats notifications disabled", "notifications_unavailable",
				logging.String("nats_url", url),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.nats_url"),
				logging.String(logging.FieldImpact, "job events are not published to NATS"),
			)
		} else {
			backends = append(backends, svc)
		}
	}

	var svc Service
	switch len(backends) {
	case 0:
		return noopService{}
	case 1:
		svc = backends[0]
	default:
		svc = multiService(backends)
	}
	return &filterService{
		next:      svc,
		started:   n.JobStarted,
		completed: n.JobCompleted,
		errors:    n.Errors,
	}
}

// filterService drops events the user switched off.
type filterService struct {
	next      Service
	started   bool
	completed bool
	errors    bool
}

func (f *filterService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !f.allows(event) {
		return nil
	}
	return f.next.Publish(ctx, event, payload)
}

func (f *filterService) allows(event Event) bool {
	switch event {
	case EventJobQueued, EventJobStarted:
		return f.started
	case EventJobCompleted:
		return f.completed
	case EventGroupFailed, EventError:
		return f.errors
	default:
		return true
	}
}

func (f *filterService) Close() error { return f.next.Close() }

// multiService fans an event out to every backend and joins their errors.
type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, svc := range m {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }
