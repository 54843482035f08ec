// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jack

import (
	"context"
	"fmt"
)

// Response is what an [App] emits for a request.
type Response struct {
	Status  int
	Headers map[string]string

	// Body is either a string, a []byte or an [io.Reader]. Readers are
	// streamed to the client chunk by chunk, everything else is written
	// as a single terminal chunk.
	Body any
}

// Respond is the continuation an [App] calls to emit its [Response].
// It must be called at most once per request.
type Respond func(Response)

// App represents the unit of composable request handling logic.
type App interface {
	Apply(ctx context.Context, env Env, respond Respond)
}

// AppFunc is a functional implementation of the [App] interface.
type AppFunc func(context.Context, Env, Respond)

// Apply implements the [App] interface.
func (f AppFunc) Apply(ctx context.Context, env Env, respond Respond) {
	f(ctx, env, respond)
}

// AppConverter is implemented by builder like values which are not
// themselves an [App] but know how to produce one.
type AppConverter interface {
	ToApp() (App, error)
}

// ToApp resolves v into an [App]. It accepts an App, a plain
// func(context.Context, Env, Respond) or an [AppConverter].
// A [ConfigurationError] is returned for anything else.
func ToApp(v any) (App, error) {
	switch x := v.(type) {
	case nil:
	case App:
		return x, nil
	case func(context.Context, Env, Respond):
		return AppFunc(x), nil
	case AppConverter:
		app, err := x.ToApp()
		if err != nil {
			return nil, err
		}
		if app == nil {
			return nil, &ConfigurationError{
				Field:  "App",
				Reason: fmt.Sprintf("%T converted to a nil app", v),
			}
		}
		return app, nil
	}
	return nil, &ConfigurationError{
		Field:  "App",
		Reason: fmt.Sprintf("%T is neither invocable nor convertible to an app", v),
	}
}

// Middleware wraps an [App] to augment its environment or response.
type Middleware func(App) App

// Chain composes the given middleware around app. The first middleware
// is the outermost one, i.e. it sees the request first.
func Chain(app App, mws ...Middleware) App {
	for i := len(mws) - 1; i >= 0; i-- {
		app = mws[i](app)
	}
	return app
}
