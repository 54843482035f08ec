// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether a process is able to serve requests.
package health

import (
	"context"
	"net/http"
	"sync"

	"github.com/z5labs/jack"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc is a func implementation of [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] that is either healthy or not.
// The zero value is healthy.
type Binary struct {
	mu        sync.Mutex
	unhealthy bool
}

// Toggle flips the state of the Binary.
func (m *Binary) Toggle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy = !m.unhealthy
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unhealthy
}

// And is healthy only while every one of metrics is.
func And(metrics ...Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		for _, m := range metrics {
			if !m.Healthy(ctx) {
				return false
			}
		}
		return true
	})
}

// Or is healthy while at least one of metrics is.
func Or(metrics ...Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		for _, m := range metrics {
			if m.Healthy(ctx) {
				return true
			}
		}
		return false
	})
}

// Not negates m.
func Not(m Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		return !m.Healthy(ctx)
	})
}

// Endpoint answers requests for path with the state of m, a 200 while
// healthy and a 503 otherwise. Every other request is passed through.
func Endpoint(path string, m Metric) jack.Middleware {
	return func(next jack.App) jack.App {
		return jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
			if env.PathInfo() != path {
				next.Apply(ctx, env, respond)
				return
			}

			status := http.StatusOK
			if !m.Healthy(ctx) {
				status = http.StatusServiceUnavailable
			}
			respond(jack.Response{
				Status: status,
				Headers: map[string]string{
					"Content-Type": "text/plain",
				},
				Body: http.StatusText(status),
			})
		})
	}
}
