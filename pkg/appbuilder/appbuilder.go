// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides wrappers for [app.Builder]s.
package appbuilder

import (
	"context"

	"github.com/z5labs/jack/internal/try"
	"github.com/z5labs/jack/pkg/app"
)

// Recover wraps builder with panic recovery. A recovered panic is
// returned as an error, see [try.PanicError].
func Recover[T any](builder app.Builder[T]) app.Builder[T] {
	return app.BuilderFunc[T](func(ctx context.Context, cfg T) (_ app.Runtime, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}
