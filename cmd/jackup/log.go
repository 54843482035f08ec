// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/z5labs/jack/pkg/maskslog"
	"github.com/z5labs/jack/pkg/otelslog"

	otelbridge "go.opentelemetry.io/contrib/bridges/otelslog"
)

// UnknownLogFormatError is returned for an unsupported log.format value.
type UnknownLogFormatError struct {
	Format string
}

// Error implements the [builtin.error] interface.
func (e UnknownLogFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %s", e.Format)
}

// newLogHandler builds the handler every jackup log record goes through.
// The "otel" format hands records to the global OpenTelemetry logger
// provider so it must be called after the providers are installed.
func newLogHandler(cfg Config, w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}

	var h slog.Handler
	switch cfg.Log.Format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "otel":
		h = otelbridge.NewHandler("github.com/z5labs/jack/cmd/jackup")
	default:
		return nil, UnknownLogFormatError{Format: cfg.Log.Format}
	}

	return otelslog.NewHandler(maskslog.NewHandler(h)), nil
}
