// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides the slog.Attr constructors used across jack.
package slogfield

import (
	"log/slog"
	"sort"
	"time"

	"github.com/z5labs/jack"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Env returns an slog.Attr grouping every string property of env,
// sorted by key. Streams, the error sink and the version marker
// are omitted.
func Env(env jack.Env) slog.Attr {
	keys := make([]string, 0, len(env))
	for k, v := range env {
		if _, ok := v.(string); !ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, len(keys))
	for i, k := range keys {
		attrs[i] = slog.String(k, env[k].(string))
	}
	return slog.Group("env", attrs...)
}
