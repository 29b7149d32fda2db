// Package dbsyncerr defines the typed error taxonomy shared by every
// connector and by the job engine. Errors are classified by Kind so
// that the CLI and the job engine can make decisions (cancel, report,
// exit code) without string-matching messages.
package dbsyncerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error. The zero value is Io; always construct
// errors through New or Wrap.
type Kind int

// Recognized error kinds, per the error taxonomy.
const (
	Io Kind = iota
	Connection
	Read
	Write
	Transform
	Config
	Task
	Type
	Channel
	Other
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Connection:
		return "connection"
	case Read:
		return "read"
	case Write:
		return "write"
	case Transform:
		return "transform"
	case Config:
		return "config"
	case Task:
		return "task"
	case Type:
		return "type"
	case Channel:
		return "channel"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// Error is a classified, stack-carrying error. The Cause, when present,
// is the underlying driver or stdlib error that triggered it.
type Error struct {
	Kind  Kind
	msg   string
	Cause error
}

// New builds a classified error with a formatted message. A stack trace
// is attached so that Cause() on a freshly constructed Error still
// carries useful debugging context even without a wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		Cause: errors.New(fmt.Sprintf(format, args...)),
	}
}

// Wrap classifies an existing error under kind, preserving it as the
// Cause so errors.Is/errors.As/errors.Cause keep working.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{
		Kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		Cause: errors.WithStack(cause),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.msg {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the Kind of err, returning Other if err is not (or
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// ExitCode maps a Kind to a process exit code. Success (nil error) is
// always 0; any classified failure maps to Kind+1 so that distinct
// failure kinds are distinguishable from the shell without parsing
// stderr.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return int(KindOf(err)) + 1
}
