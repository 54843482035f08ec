// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jack

import (
	"context"
	"errors"
	"io"
	"sync"
)

const chunkSize = 32 * 1024

// Pauser is implemented by streams that support flow control.
type Pauser interface {
	Pause()
	Resume()
}

// Input adapts any [io.Reader] into a pausable stream. It is what
// an [App] finds under [KeyInput] and it may also be used as a
// streamed response body.
type Input struct {
	r io.Reader

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

// NewInput wraps r. If r is already an *Input it is returned as is.
func NewInput(r io.Reader) *Input {
	if in, ok := r.(*Input); ok {
		return in
	}
	in := &Input{r: r}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Pause blocks all subsequent reads until Resume is called.
func (in *Input) Pause() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.paused = true
}

// Resume unblocks any reads waiting on a previous Pause.
func (in *Input) Resume() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.paused = false
	in.cond.Broadcast()
}

// Paused reports whether the stream is currently paused.
func (in *Input) Paused() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.paused
}

func (in *Input) waitResumed() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for in.paused {
		in.cond.Wait()
	}
}

// Read implements the [io.Reader] interface.
func (in *Input) Read(b []byte) (int, error) {
	in.waitResumed()
	return in.r.Read(b)
}

// Close implements the [io.Closer] interface. It closes the underlying
// reader if it supports it and releases any paused readers.
func (in *Input) Close() error {
	in.Resume()
	c, ok := in.r.(io.Closer)
	if !ok {
		return nil
	}
	return c.Close()
}

// Each reads the stream until it is exhausted, passing every chunk
// of data to f. The chunk is only valid for the duration of the call.
// Each returns nil once the end of the stream is reached, otherwise
// the first error returned by the underlying reader, by f or by ctx.
func (in *Input) Each(ctx context.Context, f func([]byte) error) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := in.Read(buf)
		if n > 0 {
			if ferr := f(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
