package runtime

import (
	"context"
	"sync"
	"testing"

	"secure-chat/errors"

	"github.com/stretchr/testify/require"
)

type stubSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *stubSink) Consume(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSinkClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *stubSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestRegistry_Register_One_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &stubSink{}

	// Given no user is connected
	req.Zero(registry.Count())

	// When a user registers
	registry.Register(1, sink)

	// Then the user is present
	got, ok := registry.Lookup(1)
	req.True(ok)
	req.Same(sink, got)
	req.Equal(1, registry.Count())
}

func TestRegistry_Register_Twice_Keeps_Only_Second_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := &stubSink{}
	sink2 := &stubSink{}

	// Given a user already connected with a first handle
	registry.Register(1, sink1)

	// When the same user registers a second handle
	registry.Register(1, sink2)

	// Then exactly one entry remains and it is the second handle
	req.Equal(1, registry.Count())
	got, ok := registry.Lookup(1)
	req.True(ok)
	req.Same(sink2, got)

	// And the superseded handle has been closed instead of leaking
	req.True(sink1.Closed())
	req.False(sink2.Closed())

	// And a send reaches only the second handle
	registry.Send(context.Background(), 1, []byte("frame"))
	req.Empty(sink1.Frames())
	req.Len(sink2.Frames(), 1)
}

func TestRegistry_Unregister_Is_Guarded_By_Handle_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := &stubSink{}
	sink2 := &stubSink{}

	// Given a reconnect replaced handle1 with handle2
	registry.Register(1, sink1)
	registry.Register(1, sink2)

	// When the stale disconnect callback of handle1 fires
	registry.Unregister(1, sink1)

	// Then the newer connection is retained
	got, ok := registry.Lookup(1)
	req.True(ok)
	req.Same(sink2, got)

	// And unregistering the live handle removes the entry
	registry.Unregister(1, sink2)
	_, ok = registry.Lookup(1)
	req.False(ok)
	req.Zero(registry.Count())
}

func TestRegistry_Send_To_Absent_User_Is_Dropped(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// No queuing, no error: the frame just disappears
	registry.Send(context.Background(), 42, []byte("frame"))
	req.Zero(registry.Count())
}
