package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"stillcut/internal/logging"
)

const defaultNATSSubject = "stillcut.jobs"

// envelope is the JSON body published for every event.
type envelope struct {
	Event   Event     `json:"event"`
	Time    time.Time `json:"time"`
	Payload Payload   `json:"payload"`
}

type natsService struct {
	nc      *nats.Conn
	subject string
}

func newNATSService(url, subject string, timeout time.Duration, logger *slog.Logger) (*natsService, error) {
	nc, err := nats.Connect(url,
		nats.Name("stillcut"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(timeout),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info("nats reconnected", logging.String("server", conn.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &natsService{nc: nc, subject: normalizeSubject(subject)}, nil
}

func (n *natsService) Publish(ctx context.Context, event Event, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, data, err := encodeEnvelope(n.subject, event, payload, time.Now())
	if err != nil {
		return err
	}
	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (n *natsService) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

func encodeEnvelope(base string, event Event, payload Payload, now time.Time) (string, []byte, error) {
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(envelope{Event: event, Time: now.UTC(), Payload: payload})
	if err != nil {
		return "", nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return normalizeSubject(base) + "." + string(event), data, nil
}

func normalizeSubject(subject string) string {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		return defaultNATSSubject
	}
	return subject
}
