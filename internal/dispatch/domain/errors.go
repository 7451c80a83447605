package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrTerminalStatus is returned when a SUCCESS/FAILURE unit is asked to move again.
	ErrTerminalStatus = errors.New("message already in a terminal status")
	// ErrResolutionGap marks a recipient category that has no resolver (POLICY).
	ErrResolutionGap = errors.New("no resolver for receive object type")
	// ErrUserPageOutOfRange is returned when USER resolution is asked for a page past the first.
	ErrUserPageOutOfRange = errors.New("user recipients resolve in a single page")
	// ErrChannelUnavailable means no enabled channel config exists for the tenant.
	ErrChannelUnavailable = errors.New("no enabled channel configured")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrMessageNotFound    = errors.New("message not found")
)

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// FailureKind is the category of a provider failure.
type FailureKind int

const (
	FailureSend FailureKind = iota
	FailureConnection
	FailureTemplateIO
	FailureTemplateParse
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnection:
		return "connection"
	case FailureTemplateIO:
		return "template_io"
	case FailureTemplateParse:
		return "template_parse"
	default:
		return "send"
	}
}

// Code returns the channel-specific error code, e.g. EMAIL_CONNECT_FAILED.
func (k FailureKind) Code(ch ChannelType) string {
	var suffix string
	switch k {
	case FailureConnection:
		suffix = "CONNECT_FAILED"
	case FailureTemplateIO:
		suffix = "TEMPLATE_IO_FAILED"
	case FailureTemplateParse:
		suffix = "TEMPLATE_PARSE_FAILED"
	default:
		suffix = "SEND_FAILED"
	}
	return strings.ToUpper(string(ch)) + "_" + suffix
}

// ProviderError lets providers and renderers tag a failure with its category.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with a failure category.
func NewProviderError(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Kind: kind, Err: err}
}

// Classify maps a delivery error onto a FailureKind.
func Classify(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return FailureConnection
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return FailureConnection
	}
	return FailureSend
}

// DispatchFailure is the outcome of a unit whose provider call failed. The unit has
// already been persisted as FAILURE when this value exists.
type DispatchFailure struct {
	MessageID string
	Channel   ChannelType
	Kind      FailureKind
	Code      string
	Reason    string
	Err       error
}

func (f *DispatchFailure) Error() string {
	return fmt.Sprintf("%s: message %s: %s", f.Code, f.MessageID, f.Reason)
}

func (f *DispatchFailure) Unwrap() error { return f.Err }
