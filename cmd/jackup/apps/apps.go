// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package apps holds the applications jackup can serve by name.
package apps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/z5labs/jack"
	"github.com/z5labs/jack/fault"
	"github.com/z5labs/jack/pkg/registry"
)

// Register adds every app in this package to r. Each app is wrapped
// with [fault.Recover].
func Register(r *registry.Registry[jack.App]) error {
	return errors.Join(
		r.Value("hello", fault.Recover(Hello(), nil)),
		r.Value("env", fault.Recover(Env(), nil)),
		r.Value("echo", fault.Recover(Echo(), nil)),
		r.Value("fail", fault.Recover(Fail(), nil)),
	)
}

// Hello always responds with a plain text greeting.
func Hello() jack.App {
	return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
		respond(jack.Response{
			Status: http.StatusOK,
			Headers: map[string]string{
				"Content-Type": "text/plain",
			},
			Body: "Hello, world!\n",
		})
	})
}

// Env responds with every property of the request env as sorted
// "key: value" lines.
func Env() jack.App {
	return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
		keys := make([]string, 0, len(env))
		for k := range env {
			if k == jack.KeyInput || k == jack.KeyErrors {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %s\n", k, format(env[k]))
		}

		respond(jack.Response{
			Status: http.StatusOK,
			Headers: map[string]string{
				"Content-Type": "text/plain",
			},
			Body: sb.String(),
		})
	})
}

func format(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case [3]int:
		return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
	default:
		return fmt.Sprint(v)
	}
}

// Echo streams the request body back with the same content type.
func Echo() jack.App {
	return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
		contentType := env.ContentType()
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		respond(jack.Response{
			Status: http.StatusOK,
			Headers: map[string]string{
				"Content-Type": contentType,
			},
			Body: env.Input(),
		})
	})
}

// Fail always fails, reporting a causal error through [fault.Handle].
func Fail() jack.App {
	return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
		err := fault.Wrap(errors.New("nothing to see here"), "failed to handle "+env.PathInfo())
		fault.Handle(ctx, err, env, respond)
	})
}
