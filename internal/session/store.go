package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store maps session identifiers to conversation histories.
//
// Entries are created lazily on first reference and evicted by capacity (LRU)
// or idle TTL. Eviction discards the history; a returning session simply
// starts over, which is acceptable for process-memory conversation state.
type Store struct {
	// mu serializes get-or-create so two concurrent first requests for the
	// same session id cannot each end up holding a different History.
	mu     sync.Mutex
	cache  *expirable.LRU[string, *History]
	logger *slog.Logger
}

// NewStore creates a session store bounded by capacity and ttl.
// ttl <= 0 disables time-based eviction.
func NewStore(capacity int, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cache:  expirable.NewLRU[string, *History](capacity, nil, ttl),
		logger: logger,
	}
}

// Get returns the history for id, creating it if absent.
// The returned History does its own locking; Get never holds the store lock
// beyond the map operation.
func (s *Store) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.cache.Get(id); ok {
		return h
	}

	h := &History{}
	if evicted := s.cache.Add(id, h); evicted {
		s.logger.Debug("session evicted by capacity", "capacity", s.cache.Len())
	}
	return h
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}
