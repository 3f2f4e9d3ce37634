// Package wferrors defines the small, closed error taxonomy shared by every
// layer of the workflow engine: Cancelled, InvalidUsage, NotFound, Timeout,
// and UserFault. Operators and WorkflowCore classify failures into one of
// these kinds instead of returning ad-hoc errors, so callers can type-switch
// once regardless of which component raised the error.
package wferrors

import (
	"errors"
	"fmt"
)

// Kind identifies which branch of the error taxonomy an Error belongs to.
type Kind int

const (
	// KindCancelled marks cooperative cancellation of a task or scope.
	KindCancelled Kind = iota
	// KindInvalidUsage marks a violated precondition by the caller.
	KindInvalidUsage
	// KindNotFound marks a lookup miss (unknown action, data field, state).
	KindNotFound
	// KindTimeout marks an operator deadline expiring.
	KindTimeout
	// KindUserFault marks any other error surfaced from user-supplied code.
	KindUserFault
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "Cancelled"
	case KindInvalidUsage:
		return "InvalidUsage"
	case KindNotFound:
		return "NotFound"
	case KindTimeout:
		return "Timeout"
	case KindUserFault:
		return "UserFault"
	default:
		return "Unknown"
	}
}

// Error is the concrete type behind every error this module raises directly.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind with an optional wrapped cause.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Cancelled builds a KindCancelled error.
func Cancelled(message string) error {
	return New(KindCancelled, message, nil)
}

// InvalidUsage builds a KindInvalidUsage error.
func InvalidUsage(message string) error {
	return New(KindInvalidUsage, message, nil)
}

// InvalidUsagef builds a KindInvalidUsage error with a formatted message.
func InvalidUsagef(format string, args ...interface{}) error {
	return New(KindInvalidUsage, fmt.Sprintf(format, args...), nil)
}

// NotFound builds a KindNotFound error.
func NotFound(message string) error {
	return New(KindNotFound, message, nil)
}

// NotFoundf builds a KindNotFound error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Timeout builds a KindTimeout error.
func Timeout(message string) error {
	return New(KindTimeout, message, nil)
}

// UserFault wraps an arbitrary error from user-supplied code.
func UserFault(cause error) error {
	if cause == nil {
		return nil
	}
	return New(KindUserFault, cause.Error(), cause)
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsCancelled reports whether err is (or wraps) a KindCancelled error.
func IsCancelled(err error) bool { return Is(err, KindCancelled) }

// IsInvalidUsage reports whether err is (or wraps) a KindInvalidUsage error.
func IsInvalidUsage(err error) bool { return Is(err, KindInvalidUsage) }

// IsNotFound reports whether err is (or wraps) a KindNotFound error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsTimeout reports whether err is (or wraps) a KindTimeout error.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }
