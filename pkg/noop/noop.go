// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package noop provides implementations which silently discard their input.
package noop

import (
	"context"
	"log/slog"
)

// LogHandler is an slog.Handler which drops every record. It reports
// every level as disabled so callers skip building attributes.
type LogHandler struct{}

func (LogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (LogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h LogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h LogHandler) WithGroup(string) slog.Handler           { return h }
