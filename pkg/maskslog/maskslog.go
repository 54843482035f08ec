// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides an slog.Handler which redacts sensitive
// attributes, such as credential carrying request headers, before they
// are written.
package maskslog

import (
	"context"
	"log/slog"

	"github.com/z5labs/jack"
)

// Masked is the value every masked attribute is replaced with.
const Masked = "****"

// SensitiveHeaders are the Env keys of request headers which carry
// credentials.
var SensitiveHeaders = []string{
	jack.HeaderKey("Authorization"),
	jack.HeaderKey("Proxy-Authorization"),
	jack.HeaderKey("Cookie"),
	jack.HeaderKey("Set-Cookie"),
}

// Option helps configure the Handler.
type Option func(*Handler)

// Keys registers attribute keys to be masked. Keys match at any
// group depth.
func Keys(keys ...string) Option {
	return func(h *Handler) {
		for _, k := range keys {
			h.keys[k] = struct{}{}
		}
	}
}

// Handler is an slog.Handler which masks the values of registered keys.
type Handler struct {
	slog slog.Handler
	keys map[string]struct{}
}

// NewHandler returns a new Handler. Without any options it masks
// [SensitiveHeaders].
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	mh := &Handler{
		slog: h,
		keys: make(map[string]struct{}),
	}
	if len(opts) == 0 {
		opts = []Option{Keys(SensitiveHeaders...)}
	}
	for _, opt := range opts {
		opt(mh)
	}
	return mh
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if _, ok := h.keys[a.Key]; ok {
		return slog.String(a.Key, Masked)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	attrs := make([]any, len(group))
	for i, ga := range group {
		attrs[i] = h.mask(ga)
	}
	return slog.Group(a.Key, attrs...)
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.mask(a))
		return true
	})
	return h.slog.Handle(ctx, nr)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{slog: h.slog.WithAttrs(masked), keys: h.keys}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{slog: h.slog.WithGroup(name), keys: h.keys}
}
