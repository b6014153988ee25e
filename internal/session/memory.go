package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. It is the default store
// and the one tests use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Get returns a copy of the user's session, creating an idle one if the
// user is new.
func (s *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[userID]
	return &sess, nil
}

// Put stores the session for the user.
func (s *MemoryStore) Put(ctx context.Context, userID int64, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = *sess
	return nil
}
