// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"

	"github.com/z5labs/jack/pkg/config/key"
)

// EmptyKeyChainError occurs when a value is set with a key which
// resolves to no names at all.
type EmptyKeyChainError struct {
	Value any
}

// Error implements the error interface.
func (e EmptyKeyChainError) Error() string {
	return fmt.Sprintf("attempted to set value to an empty key chain: %v", e.Value)
}

// KeyConflictError occurs when a nested key is set below a key which
// already holds a plain value, e.g. "tls.key_file" after "tls".
type KeyConflictError struct {
	// Key is the dotted path of the conflicting value.
	Key   string
	Value any
}

// Error implements the error interface.
func (e KeyConflictError) Error() string {
	return fmt.Sprintf("config key %s already holds a value of type %T", e.Key, e.Value)
}

type inMemoryStore map[string]any

// Set implements the [Store] interface. Nested chains are flattened and
// any other [key.Keyer] is treated as a dotted path, see [key.Split].
func (m inMemoryStore) Set(k key.Keyer, v any) error {
	names := resolve(k)
	if len(names) == 0 {
		return EmptyKeyChainError{Value: v}
	}

	cur := map[string]any(m)
	last := len(names) - 1
	for i, name := range names[:last] {
		old, ok := cur[name]
		if !ok {
			sub := make(map[string]any)
			cur[name] = sub
			cur = sub
			continue
		}

		sub, ok := old.(map[string]any)
		if !ok {
			return KeyConflictError{
				Key:   strings.Join(names[:i+1], "."),
				Value: old,
			}
		}
		cur = sub
	}
	cur[names[last]] = v
	return nil
}

func resolve(k key.Keyer) []string {
	switch x := k.(type) {
	case key.Name:
		return []string{string(x)}
	case key.Chain:
		var names []string
		for _, c := range x {
			names = append(names, resolve(c)...)
		}
		return names
	default:
		return resolve(key.Split(k.Key(), "."))
	}
}
