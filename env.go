// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jack

import (
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Reserved Env keys.
const (
	KeyProtocol        = "protocol"
	KeyProtocolVersion = "protocolVersion"
	KeyRequestMethod   = "requestMethod"
	KeyServerName      = "serverName"
	KeyServerPort      = "serverPort"
	KeyScriptName      = "scriptName"
	KeyPathInfo        = "pathInfo"
	KeyQueryString     = "queryString"
	KeyContentType     = "contentType"
	KeyContentLength   = "contentLength"
	KeyVersion         = "jack.version"
	KeyInput           = "jack.input"
	KeyErrors          = "jack.errors"
)

// Protocol schemes as they appear under KeyProtocol.
const (
	ProtocolHTTP  = "http:"
	ProtocolHTTPS = "https:"
)

// Version identifies the revision of the Env contract implemented
// by this package.
var Version = [3]int{0, 3, 0}

var (
	contentTypeKey   = HeaderKey("Content-Type")
	contentLengthKey = HeaderKey("Content-Length")
)

// Env is the normalized, per request context handed to an [App].
// An Env is owned by the request which created it and must not be
// shared across requests.
type Env map[string]any

func (env Env) str(key string) string {
	s, _ := env[key].(string)
	return s
}

// Protocol returns the request scheme, either "http:" or "https:".
func (env Env) Protocol() string { return env.str(KeyProtocol) }

// ProtocolVersion returns the HTTP wire version, e.g. "1.1".
func (env Env) ProtocolVersion() string { return env.str(KeyProtocolVersion) }

// RequestMethod returns the upper cased request method.
func (env Env) RequestMethod() string { return env.str(KeyRequestMethod) }

// ServerName returns the name of the server which accepted the request.
func (env Env) ServerName() string { return env.str(KeyServerName) }

// ServerPort returns the decimal port of the server which accepted the request.
func (env Env) ServerPort() string { return env.str(KeyServerPort) }

// ScriptName returns the mount point of the current App.
func (env Env) ScriptName() string { return env.str(KeyScriptName) }

// PathInfo returns the request path relative to ScriptName.
func (env Env) PathInfo() string { return env.str(KeyPathInfo) }

// QueryString returns the raw, unparsed query string.
func (env Env) QueryString() string { return env.str(KeyQueryString) }

// ContentType returns the value of the Content-Type request header.
func (env Env) ContentType() string { return env.str(KeyContentType) }

// ContentLength returns the request body length as declared by the client.
// It is zero when the header was absent or invalid.
func (env Env) ContentLength() int64 {
	n, _ := strconv.ParseInt(env.str(KeyContentLength), 10, 64)
	return n
}

// Header returns the value of the named request header.
func (env Env) Header(name string) string { return env.str(HeaderKey(name)) }

// Input returns the request body.
func (env Env) Input() *Input {
	in, _ := env[KeyInput].(*Input)
	return in
}

// Errors returns the error sink of the request. It is never nil for an
// Env created by [NewEnv].
func (env Env) Errors() io.Writer {
	w, ok := env[KeyErrors].(io.Writer)
	if !ok {
		return stderr
	}
	return w
}

// EnvOptions are the raw request fields an [Env] is built from.
// Every field except Input is optional.
type EnvOptions struct {
	Protocol        string
	ProtocolVersion string
	RequestMethod   string
	ServerName      string
	ServerPort      string
	ScriptName      string
	PathInfo        string
	QueryString     string

	// Headers is compatible with [net/http.Header]. Multiple values
	// for the same header are joined with ", ".
	Headers map[string][]string

	// Input is the request body.
	Input io.Reader

	// Errors is where unhandled failures get reported. It defaults to
	// the process standard error.
	Errors io.Writer
}

// NewEnv builds a fresh Env from the given options, applying defaults
// for every unset field.
func NewEnv(opts EnvOptions) (Env, error) {
	if opts.Input == nil {
		return nil, &ConfigurationError{
			Field:  "Input",
			Reason: "input must be a readable stream",
		}
	}

	env := make(Env, 13+len(opts.Headers))

	protocol := or(opts.Protocol, ProtocolHTTP)
	env[KeyProtocol] = protocol
	env[KeyProtocolVersion] = or(opts.ProtocolVersion, "1.0")
	env[KeyRequestMethod] = strings.ToUpper(or(opts.RequestMethod, "GET"))
	env[KeyServerName] = opts.ServerName
	env[KeyServerPort] = or(opts.ServerPort, defaultPort(protocol))
	env[KeyScriptName] = opts.ScriptName
	env[KeyQueryString] = opts.QueryString

	pathInfo := opts.PathInfo
	if pathInfo == "" && opts.ScriptName == "" {
		pathInfo = "/"
	}
	env[KeyPathInfo] = pathInfo

	// Sorted so that colliding header keys resolve the same way every time.
	names := make([]string, 0, len(opts.Headers))
	for name := range opts.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env[HeaderKey(name)] = strings.Join(opts.Headers[name], ", ")
	}

	env[KeyContentType] = env.str(contentTypeKey)
	delete(env, contentTypeKey)

	env[KeyContentLength] = parseContentLength(env.str(contentLengthKey))
	delete(env, contentLengthKey)

	env[KeyVersion] = Version
	env[KeyInput] = NewInput(opts.Input)

	errs := opts.Errors
	if errs == nil {
		errs = stderr
	}
	env[KeyErrors] = SyncWriter(errs)

	return env, nil
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func defaultPort(protocol string) string {
	if protocol == ProtocolHTTPS {
		return "443"
	}
	return "80"
}

func parseContentLength(s string) string {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 63)
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(n, 10)
}

var stderr = SyncWriter(os.Stderr)

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// SyncWriter serializes writes to w so that concurrent requests sharing
// the same error sink never interleave within a single write. It returns
// w unchanged if it is already synchronized.
func SyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*syncWriter); ok {
		return w
	}
	return &syncWriter{w: w}
}

// Write implements the [io.Writer] interface.
func (sw *syncWriter) Write(b []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(b)
}
