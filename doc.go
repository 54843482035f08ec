// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package jack defines a minimal convention for composable HTTP request handling.
//
// An application is anything implementing [App]: it receives a normalized
// request environment, [Env], along with a [Respond] continuation and emits
// exactly one [Response] through it. Middleware are applications wrapping
// other applications.
//
// # Environment
//
// An [Env] is a flat property bag built by [NewEnv]. Besides the request
// line fields (protocol, method, path, query string, etc.) every request
// header is stored under the key returned by [HeaderKey]:
//
//	Content-Type -> contentType
//	Content-Length -> contentLength
//	X-Request-Id -> httpXRequestId
//
// The request body is available as an [*Input], which supports pausing
// and resuming the flow of data, and failures are reported to the error
// sink returned by [Env.Errors].
//
// # Basic Usage
//
//	app := jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
//	    respond(jack.Response{
//	        Status:  http.StatusOK,
//	        Headers: map[string]string{"Content-Type": "text/plain"},
//	        Body:    "hello from " + env.PathInfo(),
//	    })
//	})
//
// See package server for running an App behind an HTTP(S) listener and
// package fault for reporting unhandled errors.
package jack
