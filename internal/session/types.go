// Package session holds per-session conversation state.
//
// Conversation history lives in process memory only. The store is bounded by
// capacity and TTL so idle sessions are evicted instead of accumulating for
// the process lifetime.
package session

import "sync"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Immutable once created.
type Turn struct {
	Role    Role
	Content string
}

// History is the ordered, append-only conversation record of one session.
// Safe for concurrent use. Callers must never hold a reference into the
// internal slice; Snapshot returns a copy.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// Snapshot returns a copy of the turns recorded so far.
// The pipeline reads a snapshot once at the start of a request and works from
// it; concurrent appends by other requests do not affect an in-flight one.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Append records a completed exchange as an atomic (user, assistant) pair.
// Appending the pair under one lock acquisition keeps concurrent requests on
// the same session from interleaving half-turns.
func (h *History) Append(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: user},
		Turn{Role: RoleAssistant, Content: assistant},
	)
}

// Len returns the number of recorded turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
