package errors

import (
	"github.com/pkg/errors"
)

// StackTrace is a stack of Frames from innermost (newest) to outermost (oldest).
type StackTrace = errors.StackTrace

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New returns an error with the supplied message formatted with optional args.
// New also records the stack trace at the point it was called.
func New(format string, args ...interface{}) error {
	if len(args) == 0 {
		return errors.New(format)
	}
	return errors.Errorf(format, args...)
}

// Wrap returns an error annotating err with a stack trace at the point Wrap
// is called, and the supplied message. If err is nil, Wrap returns nil.
func Wrap(err error, format string, args ...interface{}) error {
	if len(args) == 0 {
		return errors.Wrap(err, format)
	}
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error {
	return errors.Cause(err)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Sentinel is a simple comparable error without a stack trace, suitable for
// package-level error values that callers match with errors.Is.
type Sentinel string

func (s Sentinel) Error() string {
	return string(s)
}

// StackTraces returns the stack traces of every error in the chain that
// carries one, innermost first.
func StackTraces(err error) []StackTrace {
	var traces []StackTrace
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			traces = append(traces, st.StackTrace())
		}
		err = errors.Unwrap(err)
	}
	return traces
}
