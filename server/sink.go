// Package server exposes the relay over HTTP and WebSocket: the per-connection
// session loop, the outbound frame sink, and the account/contact/group API.
package server

import (
	"context"
	"sync"

	"secure-chat/errors"
)

// wsSink buffers outbound frames for one WebSocket session.
// Consume is called by the registry from other users' routing goroutines;
// the session's write pump drains the channel. A full buffer means the
// recipient is too slow and the frame is dropped rather than stalling
// delivery to anyone else.
type wsSink struct {
	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSink(bufferSize int) *wsSink {
	return &wsSink{
		frames: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *wsSink) Consume(ctx context.Context, frame []byte) error {
	select {
	case s.frames <- frame:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: recipient buffer full, frame lost
		return nil
	}
}

// Close wakes the write pump so it shuts the transport down. Safe to call
// more than once; the registry closes superseded sinks and the session
// closes its own.
func (s *wsSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
