// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fault

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxFrames = 32

// Error is a causal error. It records where it was created and may
// reference the lower level error which triggered it, forming a chain.
type Error struct {
	message string
	cause   error
	frames  []uintptr
}

// Option configures an Error during construction.
type Option func(*Error)

// WithCause sets the error returned by [Error.Unwrap].
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates an Error capturing the stack of its caller.
func New(msg string, opts ...Option) *Error {
	e := &Error{
		message: msg,
		frames:  callers(3),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap creates an Error caused by cause. If cause is nil an opaque
// cause is used instead.
func Wrap(cause error, msg string) *Error {
	if cause == nil {
		cause = errors.New("unknown")
	}
	return &Error{
		message: msg,
		cause:   cause,
		frames:  callers(3),
	}
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	return pcs[:n]
}

// Error implements the [builtin.error] interface.
func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *Error) Unwrap() error { return e.cause }

// Message returns the message the Error was created with.
func (e *Error) Message() string { return e.message }

// Cause returns the error which triggered e, if any.
func (e *Error) Cause() error { return e.cause }

// Trace renders the message of e followed by the frames captured
// when it was created.
func (e *Error) Trace() string {
	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(e.message)

	frames := runtime.CallersFrames(e.frames)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&sb, "\n    at %s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// FullTrace renders the trace of e followed by the full trace of every
// error in its causal chain, each introduced by "Caused by ".
//
// The chain is walked without cycle detection, a cause graph which
// loops back onto itself never terminates.
func (e *Error) FullTrace() string {
	if e.cause == nil {
		return e.Trace()
	}
	return e.Trace() + "\nCaused by " + FullTrace(e.cause)
}

// FullTrace renders err via [Error.FullTrace] if err is an *Error,
// otherwise it falls back to err.Error(). A nil err renders as
// "unknown error".
func FullTrace(err error) string {
	if err == nil {
		return "unknown error"
	}
	if e, ok := err.(*Error); ok {
		if e == nil {
			return "unknown error"
		}
		return e.FullTrace()
	}
	return err.Error()
}
