package auth

import (
	"sync"
	"time"
)

// RevocationStore remembers sessions ended by logout until the token would
// have expired anyway. Safe for concurrent use.
type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // session ID -> token expiry
	done    chan struct{}
	once    sync.Once
}

// NewRevocationStore starts a goroutine that drops expired entries every
// interval. Call Close to stop it.
func NewRevocationStore(interval time.Duration) *RevocationStore {
	s := &RevocationStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go s.cleanupLoop(interval)
	return s
}

// Revoke ends the session with the given ID.
func (s *RevocationStore) Revoke(sessionID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionID] = expiresAt
}

func (s *RevocationStore) IsRevoked(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[sessionID]
	return ok
}

// Count returns the number of revoked sessions still tracked.
func (s *RevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *RevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *RevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *RevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, id)
		}
	}
}
