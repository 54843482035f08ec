// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/z5labs/jack"
	"github.com/z5labs/jack/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	writes  []string
	flushes int
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{header: make(http.Header)}
}

func (w *recordingWriter) Header() http.Header {
	return w.header
}

func (w *recordingWriter) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.writes = append(w.writes, string(b))
	return len(b), nil
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func respondWith(resp jack.Response) jack.AppFunc {
	return func(ctx context.Context, env jack.Env, respond jack.Respond) {
		respond(resp)
	}
}

// echoApp streams the request input back as the response body.
var echoApp = jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
	respond(jack.Response{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": env.ContentType()},
		Body:    env.Input(),
	})
})

func newServer(t *testing.T, app any, opts ...Option) *Server {
	t.Helper()

	s, err := New(app, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("will return a configuration error", func(t *testing.T) {
		t.Run("if the app is not invocable", func(t *testing.T) {
			_, err := New(42)
			if !assert.ErrorIs(t, err, jack.ErrConfiguration) {
				return
			}
		})
	})
}

func TestServer_ServeHTTP(t *testing.T) {
	t.Run("will write a string body as a single chunk", func(t *testing.T) {
		s := newServer(t, respondWith(jack.Response{
			Status:  http.StatusOK,
			Headers: map[string]string{"Content-Type": "text/plain"},
			Body:    "hello world",
		}))

		w := newRecordingWriter()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.Equal(t, http.StatusOK, w.status) {
			return
		}
		if !assert.Equal(t, "text/plain", w.header.Get("Content-Type")) {
			return
		}
		if !assert.Equal(t, []string{"hello world"}, w.writes) {
			return
		}
		if !assert.Zero(t, w.flushes) {
			return
		}
	})

	t.Run("will write only the status and headers", func(t *testing.T) {
		t.Run("if the body is nil", func(t *testing.T) {
			s := newServer(t, respondWith(jack.Response{
				Status:  http.StatusNoContent,
				Headers: map[string]string{"X-Request-Id": "abc"},
			}))

			w := newRecordingWriter()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if !assert.Equal(t, http.StatusNoContent, w.status) {
				return
			}
			if !assert.Equal(t, "abc", w.header.Get("X-Request-Id")) {
				return
			}
			if !assert.Empty(t, w.writes) {
				return
			}
		})
	})

	t.Run("will default the status to 200", func(t *testing.T) {
		t.Run("if the app leaves it unset", func(t *testing.T) {
			s := newServer(t, respondWith(jack.Response{Body: []byte("ok")}))

			w := newRecordingWriter()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if !assert.Equal(t, http.StatusOK, w.status) {
				return
			}
			if !assert.Equal(t, []string{"ok"}, w.writes) {
				return
			}
		})
	})

	t.Run("will stream a reader body chunk by chunk", func(t *testing.T) {
		body := &closeTracker{Reader: iotest.OneByteReader(strings.NewReader("abc"))}
		s := newServer(t, respondWith(jack.Response{
			Status: http.StatusOK,
			Body:   body,
		}))

		w := newRecordingWriter()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.Equal(t, []string{"a", "b", "c"}, w.writes) {
			return
		}
		// one for the headers and one per chunk
		if !assert.Equal(t, 4, w.flushes) {
			return
		}
		if !assert.True(t, body.closed) {
			return
		}
	})

	t.Run("will resume a paused body", func(t *testing.T) {
		body := jack.NewInput(strings.NewReader("paused"))
		body.Pause()

		s := newServer(t, respondWith(jack.Response{Body: body}))

		w := newRecordingWriter()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.False(t, body.Paused()) {
			return
		}
		if !assert.Equal(t, "paused", strings.Join(w.writes, "")) {
			return
		}
	})

	t.Run("will echo the request input", func(t *testing.T) {
		s := newServer(t, echoApp)

		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello jack"))
		req.Header.Set("Content-Type", "text/plain")

		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)

		if !assert.Equal(t, http.StatusOK, w.Code) {
			return
		}
		if !assert.Equal(t, "text/plain", w.Header().Get("Content-Type")) {
			return
		}
		if !assert.Equal(t, "hello jack", w.Body.String()) {
			return
		}
	})

	t.Run("will echo the full request input over a connection", func(t *testing.T) {
		testCases := []struct {
			Name string
			Size int
		}{
			{Name: "small body", Size: 10},
			{Name: "body larger than the unread body limit", Size: 300 * 1024},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				s := newServer(t, echoApp)
				ts := httptest.NewServer(s)
				defer ts.Close()

				sent := bytes.Repeat([]byte("jack"), testCase.Size/4+1)[:testCase.Size]
				resp, err := http.Post(ts.URL+"/echo", "application/octet-stream", bytes.NewReader(sent))
				require.NoError(t, err)
				defer resp.Body.Close()

				echoed, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.Equal(t, len(sent), len(echoed))
				require.True(t, bytes.Equal(sent, echoed))
			})
		}
	})

	t.Run("will wait for an asynchronous response", func(t *testing.T) {
		s := newServer(t, jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				respond(jack.Response{Status: http.StatusAccepted, Body: "later"})
			}()
		}))

		w := newRecordingWriter()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.Equal(t, http.StatusAccepted, w.status) {
			return
		}
		if !assert.Equal(t, []string{"later"}, w.writes) {
			return
		}
	})

	t.Run("will only write the first response", func(t *testing.T) {
		var logs bytes.Buffer
		s := newServer(
			t,
			jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
				respond(jack.Response{Status: http.StatusOK, Body: "first"})
				respond(jack.Response{Status: http.StatusTeapot, Body: "second"})
			}),
			LogHandler(slog.NewJSONHandler(&logs, nil)),
		)

		w := newRecordingWriter()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.Equal(t, http.StatusOK, w.status) {
			return
		}
		if !assert.Equal(t, []string{"first"}, w.writes) {
			return
		}
		if !assert.Contains(t, logs.String(), "dropping repeated response") {
			return
		}
	})

	t.Run("will write nothing", func(t *testing.T) {
		t.Run("if the request ends before the app responds", func(t *testing.T) {
			s := newServer(t, jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {}))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

			w := newRecordingWriter()
			s.ServeHTTP(w, req)

			if !assert.Zero(t, w.status) {
				return
			}
			if !assert.Empty(t, w.writes) {
				return
			}
		})
	})

	t.Run("will respond with a server error", func(t *testing.T) {
		t.Run("if a recovered app panics", func(t *testing.T) {
			var sink bytes.Buffer
			app := fault.Recover(jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
				panic(fault.New("boom"))
			}), nil)
			s := newServer(t, app, ErrorSink(&sink))

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if !assert.Equal(t, http.StatusInternalServerError, w.Code) {
				return
			}
			if !assert.Equal(t, "Server Error", w.Body.String()) {
				return
			}
			if !assert.True(t, strings.HasPrefix(sink.String(), "Error: boom")) {
				return
			}
		})
	})
}

func captureEnv(t *testing.T, req *http.Request, opts ...Option) jack.Env {
	t.Helper()

	var env jack.Env
	s := newServer(t, jack.AppFunc(func(ctx context.Context, e jack.Env, respond jack.Respond) {
		env = e
		respond(jack.Response{Status: http.StatusNoContent})
	}), opts...)

	s.ServeHTTP(newRecordingWriter(), req)
	if env == nil {
		t.Fatal("app was never applied")
	}
	return env
}

func TestServer_Env(t *testing.T) {
	t.Run("will describe the request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://example.com:8080/users/42?expand=true", strings.NewReader("name=jack"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Request-Id", "abc")

		env := captureEnv(t, req)

		if !assert.Equal(t, jack.ProtocolHTTP, env.Protocol()) {
			return
		}
		if !assert.Equal(t, "1.1", env.ProtocolVersion()) {
			return
		}
		if !assert.Equal(t, http.MethodPost, env.RequestMethod()) {
			return
		}
		if !assert.Equal(t, "example.com", env.ServerName()) {
			return
		}
		if !assert.Equal(t, "8080", env.ServerPort()) {
			return
		}
		if !assert.Equal(t, "/users/42", env.PathInfo()) {
			return
		}
		if !assert.Equal(t, "expand=true", env.QueryString()) {
			return
		}
		if !assert.Equal(t, "application/x-www-form-urlencoded", env.ContentType()) {
			return
		}
		if !assert.Equal(t, int64(len("name=jack")), env.ContentLength()) {
			return
		}
		if !assert.Equal(t, "abc", env.Header("X-Request-Id")) {
			return
		}
		if !assert.Equal(t, "example.com:8080", env.Header("Host")) {
			return
		}
	})

	t.Run("will default the port from the protocol", func(t *testing.T) {
		t.Run("if the host has none", func(t *testing.T) {
			env := captureEnv(t, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))

			if !assert.Equal(t, "80", env.ServerPort()) {
				return
			}
		})
	})

	t.Run("will report https", func(t *testing.T) {
		t.Run("if it is forced", func(t *testing.T) {
			env := captureEnv(t, httptest.NewRequest(http.MethodGet, "/", nil), ForceHTTPS(true))

			if !assert.Equal(t, jack.ProtocolHTTPS, env.Protocol()) {
				return
			}
			if !assert.Equal(t, "443", env.ServerPort()) {
				return
			}
		})

		t.Run("if the request came over tls", func(t *testing.T) {
			env := captureEnv(t, httptest.NewRequest(http.MethodGet, "https://example.com/", nil))

			if !assert.Equal(t, jack.ProtocolHTTPS, env.Protocol()) {
				return
			}
		})
	})

	t.Run("will use the name and port overrides", func(t *testing.T) {
		env := captureEnv(
			t,
			httptest.NewRequest(http.MethodGet, "http://example.com:8080/", nil),
			ServerName("jack.local"),
			ServerPort("1982"),
		)

		if !assert.Equal(t, "jack.local", env.ServerName()) {
			return
		}
		if !assert.Equal(t, "1982", env.ServerPort()) {
			return
		}
	})

	t.Run("will share the error sink across requests", func(t *testing.T) {
		var sink bytes.Buffer
		opt := ErrorSink(&sink)

		first := captureEnv(t, httptest.NewRequest(http.MethodGet, "/", nil), opt)
		io.WriteString(first.Errors(), "first\n")

		second := captureEnv(t, httptest.NewRequest(http.MethodGet, "/", nil), opt)
		io.WriteString(second.Errors(), "second\n")

		if !assert.Equal(t, "first\nsecond\n", sink.String()) {
			return
		}
	})
}
