package services_test

import (
	"errors"
	"strings"
	"testing"

	"stillcut/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "render", "concat", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "concat", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindOfPrefersEmptyInputOverNestedCause(t *testing.T) {
	listErr := services.Wrap(services.ErrNoMatchingFiles, "lister", "scan", "no audio files", nil)
	planErr := services.Wrap(services.ErrEmptyInput, "planner", "pair", "nothing to pair", listErr)

	if kind := services.KindOf(planErr); kind != services.KindEmptyInput {
		t.Fatalf("expected EmptyInput, got %s", kind)
	}
	if !errors.Is(planErr, services.ErrNoMatchingFiles) {
		t.Fatal("expected nested marker to stay reachable")
	}
	if !services.IsEnqueueError(planErr) {
		t.Fatal("expected enqueue error classification")
	}
}

func TestDetails(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrCorruptInput, "render", "probe audio", "clip.mp3 has no readable audio", cause)
	details := services.Details(err)
	if details.Kind != services.KindCorruptInput {
		t.Fatalf("unexpected kind %s", details.Kind)
	}
	if details.Operation != "probe audio" {
		t.Fatalf("unexpected operation %q", details.Operation)
	}
	if details.Message != "clip.mp3 has no readable audio" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}
	if !errors.Is(details.Cause, cause) {
		t.Fatalf("unexpected cause %v", details.Cause)
	}

	if services.KindOf(errors.New("plain")) != services.KindTransient {
		t.Fatal("expected transient for untagged errors")
	}
	if services.IsEnqueueError(services.Wrap(services.ErrCorruptInput, "", "", "", nil)) {
		t.Fatal("render-time errors must not be enqueue errors")
	}
}
