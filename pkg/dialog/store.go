package dialog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a conversation does not exist or has expired.
var ErrNotFound = errors.New("conversation not found")

// Store persists per-conversation dialog state. Implementations must be
// safe for concurrent use and must return state detached from what they
// hold: mutating a returned State never affects stored data. Serialization
// of turns within one conversation is the engine's responsibility.
type Store interface {
	Get(ctx context.Context, conversationID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, conversationID string) error
}

type memoryEntry struct {
	state     *State
	expiresAt time.Time
}

// MemoryStore is the default in-process store with TTL-based expiry of
// abandoned conversations.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
}

// NewMemoryStore creates a store whose entries expire ttl after their last
// save.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
	}
}

// Get returns a deep copy of the state or ErrNotFound. Expired entries are
// removed lazily. Returning a copy keeps stored state invisible to caller
// mutations, mirroring the value semantics of the Redis store.
func (s *MemoryStore) Get(_ context.Context, conversationID string) (*State, error) {
	s.mu.RLock()
	entry, ok := s.entries[conversationID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, conversationID)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return entry.state.clone(), nil
}

// Save stores a deep copy of the state and refreshes its TTL. The caller's
// pointer stays exclusively the caller's.
func (s *MemoryStore) Save(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.ConversationID] = &memoryEntry{
		state:     state.clone(),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes the conversation. Deleting a missing conversation is not
// an error.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
	return nil
}

// Sweep removes expired entries eagerly and returns how many were removed.
// Intended to be called periodically by the owning assembly.
func (s *MemoryStore) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
