package conversation

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks malformed user input; the stage is kept and the user re-prompted.
	ErrValidation = errors.New("conversation: validation failed")
	// ErrAttachmentInvalid marks input at the attachment stage that is neither a file, a photo nor "no".
	ErrAttachmentInvalid = errors.New("conversation: invalid attachment")
	// ErrTransport marks a failed attachment download; the session terminates.
	ErrTransport = errors.New("conversation: transport failure")
	// ErrDelivery marks a failed delivery; the session terminates anyway.
	ErrDelivery = errors.New("conversation: delivery failed")
	// ErrSessionExpired is produced when the idle timer fires.
	ErrSessionExpired = errors.New("conversation: session expired")
	// ErrUserCancelled is produced by the cancel command.
	ErrUserCancelled = errors.New("conversation: cancelled by user")
	// ErrEngineClosed is returned by Submit after Close.
	ErrEngineClosed = errors.New("conversation: engine closed")
)

// Error ties a taxonomy sentinel to the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns a stable identifier used by log summaries, e.g. "TRANSPORT_FAILURE".
func (e *Error) Code() string {
	switch e.Kind {
	case ErrValidation:
		return "VALIDATION_FAILURE"
	case ErrAttachmentInvalid:
		return "ATTACHMENT_INVALID"
	case ErrTransport:
		return "TRANSPORT_FAILURE"
	case ErrDelivery:
		return "DELIVERY_FAILURE"
	case ErrSessionExpired:
		return "SESSION_EXPIRED"
	case ErrUserCancelled:
		return "USER_CANCELLED"
	}
	msg := strings.TrimPrefix(e.Kind.Error(), "conversation: ")
	return strings.ToUpper(strings.ReplaceAll(msg, " ", "_"))
}

func wrap(kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Terminal reports whether err ends the session it was raised in.
func Terminal(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDelivery) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrUserCancelled)
}
