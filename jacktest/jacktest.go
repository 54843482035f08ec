// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package jacktest provides utilities for testing jack applications.
package jacktest

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/z5labs/jack"

	"github.com/stretchr/testify/require"
)

// Recorder is a [jack.Respond] double which records the response it is
// given. Responding more than once fails the test.
type Recorder struct {
	t testing.TB

	mu        sync.Mutex
	calls     int
	resp      jack.Response
	responded chan struct{}
}

// NewRecorder returns a Recorder bound to the given test.
func NewRecorder(t testing.TB) *Recorder {
	return &Recorder{
		t:         t,
		responded: make(chan struct{}),
	}
}

// Respond implements the [jack.Respond] signature.
func (r *Recorder) Respond(resp jack.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls > 1 {
		r.t.Errorf("jacktest: respond called %d times", r.calls)
		return
	}
	r.resp = resp
	close(r.responded)
}

// Calls returns how many times Respond has been invoked.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Done is closed once Respond has been called.
func (r *Recorder) Done() <-chan struct{} {
	return r.responded
}

// Response returns the recorded response. It fails the test if
// Respond was never called.
func (r *Recorder) Response() jack.Response {
	r.t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Equal(r.t, 1, r.calls, "expected respond to be called exactly once")
	return r.resp
}

// Body reads the recorded response body into a string.
func (r *Recorder) Body() string {
	r.t.Helper()

	resp := r.Response()
	switch b := resp.Body.(type) {
	case nil:
		return ""
	case string:
		return b
	case []byte:
		return string(b)
	case io.Reader:
		var buf bytes.Buffer
		_, err := io.Copy(&buf, b)
		require.Nil(r.t, err)
		return buf.String()
	default:
		r.t.Fatalf("jacktest: unsupported body type: %T", b)
		return ""
	}
}

// NewEnv builds a [jack.Env] from opts, defaulting to an empty input
// stream and a discarded error sink.
func NewEnv(t testing.TB, opts jack.EnvOptions) jack.Env {
	t.Helper()

	if opts.Input == nil {
		opts.Input = strings.NewReader("")
	}
	if opts.Errors == nil {
		opts.Errors = io.Discard
	}
	env, err := jack.NewEnv(opts)
	require.Nil(t, err)
	return env
}
