// Package runtime hosts the relay's live state and routing decisions.
// It orchestrates delivery without containing transport or storage details.
package runtime

import (
	"context"
	"sync"

	"secure-chat/contract"
)

// Registry maps each connected user id to exactly one live FrameSink.
// It is the single structure mutated concurrently by session goroutines,
// so every operation takes the mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]contract.FrameSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]contract.FrameSink)}
}

// Register installs sink as the sole entry for userID. A previous sink for
// the same id is superseded and explicitly closed, so a client logging in
// from a second device evicts its first session instead of leaking it.
func (r *Registry) Register(userID int64, sink contract.FrameSink) {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = sink
	r.mu.Unlock()

	if prev != nil && prev != sink {
		prev.Close()
	}
}

// Unregister removes the entry only if it still points at sink. A stale
// disconnect callback from a superseded session must not evict the
// connection that replaced it.
func (r *Registry) Unregister(userID int64, sink contract.FrameSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[userID]; ok && current == sink {
		delete(r.sessions, userID)
	}
}

// Lookup is an O(1) presence check.
func (r *Registry) Lookup(userID int64) (contract.FrameSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[userID]
	return sink, ok
}

// Send is a presence-gated, fire-and-forget unicast: if the user has no
// live sink the frame is dropped. There is no queuing and no retry.
func (r *Registry) Send(ctx context.Context, userID int64, frame []byte) {
	sink, ok := r.Lookup(userID)
	if !ok {
		return
	}
	_ = sink.Consume(ctx, frame)
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
