package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) Close() error { return nil }

func formatMessage(event Event, payload Payload) (message, bool) {
	jobID := payload.num("jobID")
	switch event {
	case EventJobQueued:
		return message{
			title: "stillcut - Job Queued",
			body:  fmt.Sprintf("Job #%d queued: %d group(s) into %s", jobID, payload.num("groups"), payload.str("outDir")),
			tags:  []string{"stillcut", "job", "queued"},
		}, true
	case EventJobStarted:
		return message{
			title: "stillcut - Rendering",
			body:  fmt.Sprintf("Job #%d started: %d group(s)", jobID, payload.num("groups")),
			tags:  []string{"stillcut", "job", "started"},
		}, true
	case EventJobCompleted:
		status := payload.str("status")
		msg := message{
			title: "stillcut - Job " + status,
			body: fmt.Sprintf("Job #%d %s: %d succeeded, %d failed",
				jobID, status, payload.num("succeeded"), payload.num("failed")),
			tags: []string{"stillcut", "job", "completed"},
		}
		if dur := payload.str("duration"); dur != "" {
			msg.body += " in " + dur
		}
		if payload.num("failed") > 0 {
			msg.priority = "high"
		}
		return msg, true
	case EventGroupFailed:
		return message{
			title:    "stillcut - Group Failed",
			body:     fmt.Sprintf("Job #%d group %s failed (%s): %s", jobID, payload.str("group"), payload.str("kind"), payload.str("error")),
			tags:     []string{"stillcut", "group", "failed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := payload.str("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "stillcut - Error",
			body:     b.String(),
			tags:     []string{"stillcut", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "stillcut - Test",
			body:     "Notification system test",
			tags:     []string{"stillcut", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
