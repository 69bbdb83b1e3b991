package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"stillcut/internal/config"
	"stillcut/internal/notifications"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg, nil)
	if err := svc.Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"jobID": int64(1)}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "job started",
			event:       notifications.EventJobStarted,
			payload:     notifications.Payload{"jobID": int64(4), "groups": 3},
			expectTitle: "stillcut - Rendering",
			expectBody:  "Job #4 started: 3 group(s)",
			expectTags:  "stillcut,job,started",
		},
		{
			name:  "job completed with failures",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"jobID": int64(4), "status": "PartiallySucceeded", "succeeded": 2, "failed": 1,
			},
			expectTitle:    "stillcut - Job PartiallySucceeded",
			expectBody:     "Job #4 PartiallySucceeded: 2 succeeded, 1 failed",
			expectTags:     "stillcut,job,completed",
			expectPriority: "high",
		},
		{
			name:  "group failed",
			event: notifications.EventGroupFailed,
			payload: notifications.Payload{
				"jobID": int64(4), "group": "002.jpg", "kind": "CorruptInput", "error": "cannot decode",
			},
			expectTitle:    "stillcut - Group Failed",
			expectBody:     "Job #4 group 002.jpg failed (CorruptInput): cannot decode",
			expectTags:     "stillcut,group,failed",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "stillcut - Test",
			expectBody:     "Notification system test",
			expectTags:     "stillcut,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newNtfyServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg, nil)
			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := requests()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			req := got[0]
			if req.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectBody {
				t.Fatalf("body = %q, want %q", req.body, tt.expectBody)
			}
			if req.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestToggleFiltersEvents(t *testing.T) {
	srv, requests := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.JobStarted = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg, nil)
	ctx := context.Background()

	for _, event := range []notifications.Event{
		notifications.EventJobQueued,
		notifications.EventJobStarted,
		notifications.EventGroupFailed,
		notifications.EventJobCompleted,
	} {
		if err := svc.Publish(ctx, event, notifications.Payload{"jobID": int64(1)}); err != nil {
			t.Fatalf("Publish %s: %v", event, err)
		}
	}
	got := requests()
	if len(got) != 1 || !strings.HasPrefix(got[0].title, "stillcut - Job") {
		t.Fatalf("expected only the completion event, got %+v", got)
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg, nil)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
