// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package maskslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_Handle(t *testing.T) {
	t.Run("will not mask attrs", func(t *testing.T) {
		t.Run("if the slog.Attr key is not registered", func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewHandler(
				slog.NewJSONHandler(&buf, &slog.HandlerOptions{}),
				Keys("random"),
			))
			logger.Info("hello world", slog.String("secret", "super duper secret value"))

			var record struct {
				Message string `json:"msg"`
				Secret  string `json:"secret"`
			}
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello world", record.Message) {
				return
			}
			if !assert.Equal(t, "super duper secret value", record.Secret) {
				return
			}
		})
	})

	t.Run("will mask attrs", func(t *testing.T) {
		t.Run("if the slog.Attr key is registered", func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewHandler(
				slog.NewJSONHandler(&buf, &slog.HandlerOptions{}),
				Keys("secret"),
			))
			logger.Info("hello world", slog.String("secret", "super duper secret value"))

			var record struct {
				Secret string `json:"secret"`
			}
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, Masked, record.Secret) {
				return
			}
		})

		t.Run("if a sensitive header is nested in a group", func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{})))
			logger.Info(
				"request",
				slog.Group(
					"env",
					slog.String("httpAuthorization", "Bearer token"),
					slog.String("httpHost", "example.com"),
				),
			)

			var record struct {
				Env struct {
					Authorization string `json:"httpAuthorization"`
					Host          string `json:"httpHost"`
				} `json:"env"`
			}
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, Masked, record.Env.Authorization) {
				return
			}
			if !assert.Equal(t, "example.com", record.Env.Host) {
				return
			}
		})
	})
}

func TestHandler_WithAttrs(t *testing.T) {
	t.Run("will mask attrs", func(t *testing.T) {
		t.Run("if the slog.Attr key is registered", func(t *testing.T) {
			var buf bytes.Buffer
			var h slog.Handler = NewHandler(
				slog.NewJSONHandler(&buf, &slog.HandlerOptions{}),
				Keys("secret"),
			)
			h = h.WithGroup("g").WithAttrs([]slog.Attr{slog.String("secret", "super duper secret value")})

			slog.New(h).Info("hello world")

			var record struct {
				G struct {
					Secret string `json:"secret"`
				} `json:"g"`
			}
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, Masked, record.G.Secret) {
				return
			}
		})
	})
}
