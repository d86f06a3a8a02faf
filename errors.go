package modelrouter

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

// Error kinds surfaced by the pipeline.
const (
	// KindNoModelFound means selection produced no candidate.
	KindNoModelFound Kind = "no-model-found"
	// KindProviderCapabilityMissing means an explicitly pinned model exists
	// but lacks a required capability or parameter.
	KindProviderCapabilityMissing Kind = "provider-capability-missing"
	// KindDispatchUnsupported means the fallback ladder was exhausted.
	KindDispatchUnsupported Kind = "dispatch-unsupported"
	// KindValidationFailed means a pre-dispatch check rejected the request:
	// a budget hook veto or an invalid tool schema.
	KindValidationFailed Kind = "validation-failed"
	// KindCancelled means the caller's context was cancelled.
	KindCancelled Kind = "cancelled"
	// KindProviderError wraps a failure returned by the provider itself.
	KindProviderError Kind = "provider-error"
	// KindRegistryError covers catalog registration and refresh failures.
	KindRegistryError Kind = "registry-error"
)

// Error is the typed failure surfaced to callers and the OnError hook. Op is
// the operation-family tag (e.g. "chat-stream").
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same kind, so callers can test
// errors.Is(err, &Error{Kind: KindNoModelFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func newError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// asRouterError normalizes any error into *Error, tagging untyped errors as
// provider errors and recognizing context cancellation.
func asRouterError(op string, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		if re.Op == "" {
			re.Op = op
		}
		return re
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindCancelled, op, "request cancelled", err)
	}
	return newError(KindProviderError, op, "provider request failed", err)
}
