package modelrouter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Format(t *testing.T) {
	e := newError(KindNoModelFound, "chat", "no compatible model found", nil)
	want := "chat: no-model-found: no compatible model found"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	cause := errors.New("boom")
	e = newError(KindProviderError, "chat", "provider request failed", cause)
	if got := e.Error(); got != "chat: provider-error: provider request failed: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestError_Is(t *testing.T) {
	err := newError(KindNoModelFound, "chat", "msg", nil)

	if !errors.Is(err, &Error{Kind: KindNoModelFound}) {
		t.Error("kind-only match failed")
	}
	if !errors.Is(err, &Error{Kind: KindNoModelFound, Op: "chat"}) {
		t.Error("kind+op match failed")
	}
	if errors.Is(err, &Error{Kind: KindNoModelFound, Op: "embedding"}) {
		t.Error("different op should not match")
	}
	if errors.Is(err, &Error{Kind: KindProviderError}) {
		t.Error("different kind should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := newError(KindProviderError, "chat", "wrapped", cause)
	if !errors.Is(err, cause) {
		t.Error("unwrap chain broken")
	}
}

func TestAsRouterError(t *testing.T) {
	// Typed errors pass through, picking up the op when missing.
	typed := newError(KindDispatchUnsupported, "", "msg", nil)
	got := asRouterError("chat", typed)
	if got.Kind != KindDispatchUnsupported || got.Op != "chat" {
		t.Errorf("typed passthrough = %+v", got)
	}

	// Context errors become cancellations.
	got = asRouterError("chat", context.Canceled)
	if got.Kind != KindCancelled {
		t.Errorf("context.Canceled -> %s", got.Kind)
	}
	got = asRouterError("chat", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	if got.Kind != KindCancelled {
		t.Errorf("deadline -> %s", got.Kind)
	}

	// Everything else is a provider error.
	got = asRouterError("chat", errors.New("http 500"))
	if got.Kind != KindProviderError || got.Op != "chat" {
		t.Errorf("untyped -> %+v", got)
	}
}
