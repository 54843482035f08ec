// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/z5labs/jack"
	"github.com/z5labs/jack/internal/try"
	"github.com/z5labs/jack/pkg/noop"
	"github.com/z5labs/jack/pkg/otelslog"
	"github.com/z5labs/jack/pkg/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type options struct {
	forceHTTPS        bool
	serverName        string
	serverPort        string
	errorSink         io.Writer
	logHandler        slog.Handler
	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	maxHeaderBytes    int
}

// Option configures a [Server].
type Option func(*options)

// ForceHTTPS makes every request report "https:" as its protocol,
// regardless of the transport which accepted it. Useful behind a TLS
// terminating proxy.
func ForceHTTPS(force bool) Option {
	return func(o *options) {
		o.forceHTTPS = force
	}
}

// ServerName overrides the server name reported to the app instead of
// the address the connection was accepted on.
func ServerName(name string) Option {
	return func(o *options) {
		o.serverName = name
	}
}

// ServerPort overrides the server port reported to the app instead of
// the port the connection was accepted on.
func ServerPort(port string) Option {
	return func(o *options) {
		o.serverPort = port
	}
}

// ErrorSink sets where apps report unhandled failures.
//
// Default is the process standard error.
func ErrorSink(w io.Writer) Option {
	return func(o *options) {
		o.errorSink = w
	}
}

// LogHandler sets the handler the server logs through.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request headers.
//
// Default is 2 seconds.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readHeaderTimeout = d
	}
}

// IdleTimeout sets the maximum duration to wait for the next request
// when keep-alives are enabled.
//
// Default is 120 seconds.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// ShutdownTimeout bounds how long in flight requests are waited on
// once the server is asked to stop. Connections still open afterwards
// are closed forcefully.
//
// Default is 10 seconds.
func ShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}

// MaxHeaderBytes sets the maximum number of bytes read while parsing
// the request line and headers.
//
// Default is 1048576 bytes (1 MB).
func MaxHeaderBytes(n int) Option {
	return func(o *options) {
		o.maxHeaderBytes = n
	}
}

// Server adapts a [jack.App] to [net/http]. Each request is translated
// into a [jack.Env] and the response the app emits is written back to
// the client.
type Server struct {
	app  jack.App
	log  *slog.Logger
	errs io.Writer

	forceHTTPS bool
	serverName string
	serverPort string

	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	maxHeaderBytes    int
}

// New returns a Server for app. The app is resolved with [jack.ToApp]
// so a [*jack.ConfigurationError] is returned if it is neither
// invocable nor convertible.
func New(app any, opts ...Option) (*Server, error) {
	a, err := jack.ToApp(app)
	if err != nil {
		return nil, err
	}

	o := &options{
		errorSink:         os.Stderr,
		logHandler:        noop.LogHandler{},
		readHeaderTimeout: 2 * time.Second,
		idleTimeout:       120 * time.Second,
		shutdownTimeout:   10 * time.Second,
		maxHeaderBytes:    1 << 20,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		app:               a,
		log:               otelslog.New(o.logHandler),
		errs:              jack.SyncWriter(o.errorSink),
		forceHTTPS:        o.forceHTTPS,
		serverName:        o.serverName,
		serverPort:        o.serverPort,
		readHeaderTimeout: o.readHeaderTimeout,
		idleTimeout:       o.idleTimeout,
		shutdownTimeout:   o.shutdownTimeout,
		maxHeaderBytes:    o.maxHeaderBytes,
	}
	return s, nil
}

// ServeHTTP implements the [http.Handler] interface.
//
// The app is applied synchronously but may respond from any goroutine.
// ServeHTTP returns once the response has been written or the request
// context is done, whichever happens first. Only the first response an
// app emits is written, any further ones are logged and dropped.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := otelslog.ContextWithAttrs(
		r.Context(),
		slogfield.String("method", r.Method),
		slogfield.String("path", r.URL.Path),
	)

	env, err := jack.NewEnv(s.envOptions(r))
	if err != nil {
		s.log.ErrorContext(ctx, "failed to build request env", slogfield.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.log.DebugContext(ctx, "received request", slogfield.Env(env))

	responses := make(chan jack.Response, 1)
	var once sync.Once
	respond := func(resp jack.Response) {
		sent := false
		once.Do(func() {
			sent = true
			responses <- resp
		})
		if !sent {
			s.log.WarnContext(ctx, "dropping repeated response", slogfield.Int("status", resp.Status))
		}
	}

	s.app.Apply(ctx, env, respond)

	select {
	case resp := <-responses:
		s.write(ctx, w, resp)
	case <-ctx.Done():
		s.log.WarnContext(ctx, "request ended before a response was issued", slogfield.Error(ctx.Err()))
	}
}

func (s *Server) envOptions(r *http.Request) jack.EnvOptions {
	protocol := jack.ProtocolHTTP
	if s.forceHTTPS || r.TLS != nil {
		protocol = jack.ProtocolHTTPS
	}

	name, port := localAddr(r)
	if s.serverName != "" {
		name = s.serverName
	}
	if s.serverPort != "" {
		port = s.serverPort
	}

	var body io.Reader = r.Body
	if body == nil {
		body = http.NoBody
	}

	return jack.EnvOptions{
		Protocol:        protocol,
		ProtocolVersion: fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor),
		RequestMethod:   r.Method,
		ServerName:      name,
		ServerPort:      port,
		PathInfo:        r.URL.Path,
		QueryString:     r.URL.RawQuery,
		Headers:         requestHeaders(r),
		Input:           body,
		Errors:          s.errs,
	}
}

// localAddr returns the address the connection was accepted on, falling
// back to the Host header for non TCP listeners.
func localAddr(r *http.Request) (name, port string) {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(*net.TCPAddr); ok {
		return addr.IP.String(), strconv.Itoa(addr.Port)
	}

	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		return r.Host, ""
	}
	return host, port
}

// requestHeaders restores the headers net/http lifts out of r.Header.
func requestHeaders(r *http.Request) map[string][]string {
	headers := make(map[string][]string, len(r.Header)+2)
	for name, values := range r.Header {
		headers[name] = values
	}
	if r.Host != "" {
		headers["Host"] = []string{r.Host}
	}
	if _, ok := headers["Content-Length"]; !ok && r.ContentLength > 0 {
		headers["Content-Length"] = []string{strconv.FormatInt(r.ContentLength, 10)}
	}
	return headers
}

func (s *Server) write(ctx context.Context, w http.ResponseWriter, resp jack.Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	h := w.Header()
	for name, value := range resp.Headers {
		h.Set(name, value)
	}

	var err error
	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		w.WriteHeader(status)
		_, err = io.WriteString(w, body)
	case []byte:
		w.WriteHeader(status)
		_, err = w.Write(body)
	case io.Reader:
		err = stream(ctx, w, status, body)
	default:
		w.WriteHeader(status)
		_, err = fmt.Fprint(w, body)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "failed to write response body", slogfield.Int("status", status), slogfield.Error(err))
		return
	}
	s.log.DebugContext(ctx, "sent response", slogfield.Int("status", status))
}

// stream copies body to w one chunk at a time, flushing after each
// chunk. Writes block while the client is slow to read so the body is
// never consumed faster than the connection drains.
//
// The connection is switched to full duplex first. Otherwise HTTP/1.x
// discards any unread request body once headers are flushed, which
// breaks bodies produced from the request input.
func stream(ctx context.Context, w http.ResponseWriter, status int, body io.Reader) (err error) {
	defer try.Close(&err, body)

	rc := http.NewResponseController(w)
	err = rc.EnableFullDuplex()
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	flush := func() error {
		err := rc.Flush()
		if errors.Is(err, http.ErrNotSupported) {
			return nil
		}
		return err
	}

	// Status and headers go out before the first chunk is produced.
	w.WriteHeader(status)
	err = flush()
	if err != nil {
		return err
	}

	if p, ok := body.(jack.Pauser); ok {
		p.Resume()
	}

	return jack.NewInput(body).Each(ctx, func(b []byte) error {
		_, err := w.Write(b)
		if err != nil {
			return err
		}
		return flush()
	})
}

// Run serves requests accepted by ln until ctx is cancelled, at which
// point the server is gracefully shut down. Returns nil if the server
// shuts down cleanly.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler: otelhttp.NewHandler(
			s,
			"jack",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
		ReadHeaderTimeout: s.readHeaderTimeout,
		IdleTimeout:       s.idleTimeout,
		MaxHeaderBytes:    s.maxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		defer s.log.Info("shut down server")

		s.log.Info("shutting down server")
		err := hs.Shutdown(sctx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("forcefully closing remaining connections")
			return hs.Close()
		}
		return err
	})
	g.Go(func() error {
		s.log.Info("started server", slogfield.String("addr", ln.Addr().String()))
		return hs.Serve(ln)
	})

	err := g.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.log.Error("server encountered unexpected error", slogfield.Error(err))
	return err
}
