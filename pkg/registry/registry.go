// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package registry maps names to lazily provided values.
//
// A provider is only invoked the first time its name is looked up. The
// result, value or error, is cached and returned for every later lookup.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/z5labs/jack/internal/try"
)

// Provider creates the value registered under a name.
type Provider[T any] func(context.Context) (T, error)

// DuplicateError is returned when registering a name twice.
type DuplicateError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e DuplicateError) Error() string {
	return fmt.Sprintf("registry: %s is already registered", e.Name)
}

// NotFoundError is returned when looking up a name nothing is registered under.
type NotFoundError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("registry: %s is not registered", e.Name)
}

type entry[T any] struct {
	once    sync.Once
	provide Provider[T]
	val     T
	err     error
}

func (e *entry[T]) get(ctx context.Context) (T, error) {
	e.once.Do(func() {
		e.val, e.err = e.resolve(ctx)
	})
	return e.val, e.err
}

func (e *entry[T]) resolve(ctx context.Context) (_ T, err error) {
	defer try.Recover(&err)

	return e.provide(ctx)
}

// Registry is safe for concurrent use. The zero value is ready to use.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
}

// Register associates p with name.
func (r *Registry[T]) Register(name string, p Provider[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*entry[T])
	}
	if _, exists := r.entries[name]; exists {
		return DuplicateError{Name: name}
	}
	r.entries[name] = &entry[T]{provide: p}
	return nil
}

// Value registers a value which needs no initialization.
func (r *Registry[T]) Value(name string, v T) error {
	return r.Register(name, func(context.Context) (T, error) {
		return v, nil
	})
}

// Get returns the value registered under name, invoking its provider
// if this is the first lookup. Concurrent first lookups share a single
// invocation.
func (r *Registry[T]) Get(ctx context.Context, name string) (T, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()

	if !ok {
		var zero T
		return zero, NotFoundError{Name: name}
	}
	return e.get(ctx)
}

// Names returns every registered name in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
