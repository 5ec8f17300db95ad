package apperrors

import (
	"context"
	"errors"
	"strings"
)

type Kind string

const (
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindBadRequest Kind = "bad_request"
	KindProtocol   Kind = "protocol"
	KindPermission Kind = "permission"
)

type Error struct {
	Kind Kind
	// SafeMessage is shown to the user as-is.
	SafeMessage string
	// Cause keeps the original error for logs.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key."
	case KindBadRequest:
		return "Request rejected by upstream API."
	case KindProtocol:
		return "The model service reported an error."
	case KindPermission:
		return "Accessibility permission is not granted."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{Kind: kind, SafeMessage: msg, Cause: cause}
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// IsCanceled reports whether err only records a deliberate cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// PublicMessage renders err as a single user-visible line.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
