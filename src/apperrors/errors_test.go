package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNewUsesDefaultMessage(t *testing.T) {
	err := New(KindRateLimit, "", errors.New("429"))
	if got := err.Error(); got != "Rate limit exceeded. Please try again later." {
		t.Errorf("Unexpected message %q", got)
	}
	kind, ok := KindOf(fmt.Errorf("wrapped: %w", err))
	if !ok || kind != KindRateLimit {
		t.Errorf("KindOf = %q, %v", kind, ok)
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	cause := errors.New("body contained sk-secret")
	err := New(KindAuth, "Check your key.", cause)
	if msg := PublicMessage(fmt.Errorf("explain: %w", err)); msg != "Check your key." {
		t.Errorf("PublicMessage = %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to stay in the chain")
	}
	if PublicMessage(nil) != "" {
		t.Error("Expected empty message for nil")
	}
	if PublicMessage(errors.New("plain")) != "plain" {
		t.Error("Expected plain errors to pass through")
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(fmt.Errorf("stream: %w", context.Canceled)) {
		t.Error("Expected wrapped context.Canceled to be recognized")
	}
	if IsCanceled(context.DeadlineExceeded) {
		t.Error("Deadline is a failure, not a cancellation")
	}
}
