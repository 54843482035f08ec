// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server runs jack applications on top of [net/http].
//
// # Basic Usage
//
//	app := jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
//		respond(jack.Response{
//			Status:  http.StatusOK,
//			Headers: map[string]string{"Content-Type": "text/plain"},
//			Body:    "hello world",
//		})
//	})
//
//	err := server.Run(ctx, app, server.RunOptions{}, func(addr net.Addr) {
//		log.Println("listening on", addr)
//	})
//
// # Streaming
//
// A response body implementing [io.Reader] is copied to the client a chunk
// at a time with each chunk flushed as soon as it is written. If the body
// is a [jack.Pauser] it is resumed first, which lets an app echo its own
// request input back without buffering. The body is closed afterwards if
// it implements [io.Closer].
//
// # Listening
//
// [RunOptions] picks between a unix socket and a TCP address, with TCP
// falling back to [DefaultPort]. TLS is enabled only when both a key and
// a certificate are given.
package server
