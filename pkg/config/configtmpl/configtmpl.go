// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package configtmpl provides template functions for use in config source templates.
package configtmpl

import (
	"os"
	"reflect"

	"github.com/z5labs/jack/pkg/config"
)

// Env returns the environment variable value for the given key
// or an empty string, if the environment variable does not exist.
func Env(key string) string {
	return os.Getenv(key)
}

// Default returns the provided def value if v is either nil or the zero value for its type.
func Default(def, v any) any {
	if v == nil {
		return def
	}
	val := reflect.ValueOf(v)
	if val.IsZero() {
		return def
	}
	return v
}

// Funcs registers every function of this package under its lower
// cased name, e.g. {{ env "PORT" | default 1982 }}.
func Funcs() []config.RenderTextTemplateOption {
	return []config.RenderTextTemplateOption{
		config.TemplateFunc("env", Env),
		config.TemplateFunc("default", Default),
	}
}
