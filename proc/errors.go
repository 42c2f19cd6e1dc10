package proc

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies engine failures so the command layer can pick a reply.
type ErrorKind int

const (
	ExtractionFailed ErrorKind = iota + 1
	UnsupportedReference
	TransportError
	InvalidStateTransition
	QuotaExceeded
	InvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case ExtractionFailed:
		return "ExtractionFailed"
	case UnsupportedReference:
		return "UnsupportedReference"
	case TransportError:
		return "TransportError"
	case InvalidStateTransition:
		return "InvalidStateTransition"
	case QuotaExceeded:
		return "QuotaExceeded"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the typed failure returned by engine operations.
type Error struct {
	Kind    ErrorKind
	Message string
	// RetryAfter is set when the caller may try again later (rate limits).
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
