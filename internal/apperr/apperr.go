// Package apperr defines the error kinds shared by use cases, storage and transport.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthenticated
	KindPermissionDenied
	KindNotFound
	KindFailedPrecondition
	KindResourceExhausted
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindNotFound:
		return "NotFound"
	case KindFailedPrecondition:
		return "FailedPrecondition"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// Error is a classified failure. Message is safe to show to API clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal when nothing in the chain is classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func InvalidArgument(msg string) error    { return New(KindInvalidArgument, msg) }
func Unauthenticated(msg string) error    { return New(KindUnauthenticated, msg) }
func PermissionDenied(msg string) error   { return New(KindPermissionDenied, msg) }
func NotFound(msg string) error           { return New(KindNotFound, msg) }
func FailedPrecondition(msg string) error { return New(KindFailedPrecondition, msg) }
func ResourceExhausted(msg string) error  { return New(KindResourceExhausted, msg) }
