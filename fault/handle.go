// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fault

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/z5labs/jack"
)

// Handler decides what happens to an error an [jack.App] could not deal
// with. It returns true if it issued a response, false if the failure
// should propagate instead.
type Handler func(ctx context.Context, err error, env jack.Env, respond jack.Respond) bool

// Handle is the default [Handler]. It reports the full trace of err to
// the error sink of env and always responds with a plain text 500. A nil
// err is reported as "unknown error".
func Handle(ctx context.Context, err error, env jack.Env, respond jack.Respond) bool {
	// The sink is best effort, the client gets a 500 either way.
	_, _ = io.WriteString(env.Errors(), FullTrace(err)+"\n")

	respond(jack.Response{
		Status: http.StatusInternalServerError,
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
		Body: "Server Error",
	})
	return true
}

// PanicError is what [Recover] hands to its [Handler] when the recovered
// value is not an error.
type PanicError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Recover wraps app so that panics raised while applying it are passed
// to h. If h returns false the panic is re-raised. A nil h defaults to
// [Handle].
func Recover(app jack.App, h Handler) jack.App {
	if h == nil {
		h = Handle
	}
	return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			err, ok := r.(error)
			if !ok {
				err = PanicError{Value: r}
			}
			if !h(ctx, err, env, respond) {
				panic(r)
			}
		}()

		app.Apply(ctx, env, respond)
	})
}
