// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fault provides a causal error type and the default responder
// for errors a jack application could not handle itself.
//
//	err := fault.Wrap(dbErr, "failed to load user")
//	fmt.Println(err.FullTrace())
//	// Error: failed to load user
//	//     at main.loadUser (/src/main.go:42)
//	//     ...
//	// Caused by connection refused
package fault
