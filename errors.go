// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jack

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every [ConfigurationError] via [errors.Is].
var ErrConfiguration = errors.New("jack: invalid configuration")

// ConfigurationError occurs when setup time input is invalid, for example
// an app which cannot be invoked or an Env without an input stream.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the [builtin.error] interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("jack: invalid %s: %s", e.Field, e.Reason)
}

// Is implements the implicit interface used by [errors.Is].
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
