// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides the process level runtime a jack server is hosted
// in along with helpers for wrapping it.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/jack/internal/try"
)

// Runtime is anything that runs until ctx is cancelled or it fails.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func implementation of [Runtime].
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Builder initializes a [Runtime] from its config.
type Builder[T any] interface {
	Build(ctx context.Context, cfg T) (Runtime, error)
}

// BuilderFunc is a func implementation of [Builder].
type BuilderFunc[T any] func(context.Context, T) (Runtime, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context, cfg T) (Runtime, error) {
	return f(ctx, cfg)
}

// Recover wraps rt with panic recovery. A recovered panic is returned
// as an error, see [try.PanicError].
func Recover(rt Runtime) Runtime {
	return RuntimeFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return rt.Run(ctx)
	})
}

// WithSignalNotifications wraps rt so that the [context.Context] passed
// to it is cancelled once any of the given signals are received.
func WithSignalNotifications(rt Runtime, signals ...os.Signal) Runtime {
	return RuntimeFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return rt.Run(sigCtx)
	})
}

// LifecycleHook is run at a specific point relative to [Runtime.Run].
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a func implementation of [LifecycleHook].
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lifecycle groups the hooks run around a [Runtime].
type Lifecycle struct {
	// PreRun is executed before the runtime. If it fails the
	// runtime is never started.
	PreRun LifecycleHook

	// PostRun is always executed, even if the runtime fails or panics.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps rt so that the hooks of lifecycle are
// run around it.
func WithLifecycleHooks(rt Runtime, lifecycle Lifecycle) Runtime {
	return RuntimeFunc(func(ctx context.Context) (err error) {
		if lifecycle.PreRun != nil {
			err = lifecycle.PreRun.Run(ctx)
			if err != nil {
				return err
			}
		}

		defer runPostRunHook(ctx, lifecycle.PostRun, &err)

		return rt.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	// The runtime context is most likely done by now.
	hookErr := hook.Run(context.WithoutCancel(ctx))

	*err = errors.Join(*err, hookErr)
}
