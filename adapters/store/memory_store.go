package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/agentgate/ports"
)

// MemoryStore is an in-process implementation of the NonceStore interface.
// It is only suitable for single-instance deployments.
type MemoryStore struct {
	nonces map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewMemoryStore creates a new in-memory nonce store
func NewMemoryStore(ttl time.Duration) ports.NonceStore {
	return newMemoryStore(ttl, time.Now)
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		nonces: make(map[string]time.Time),
		ttl:    ttl,
		now:    now,
	}
}

// Issue records a fresh nonce and purges expired ones
func (s *MemoryStore) Issue(ctx context.Context) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	s.nonces[nonce] = now

	return nonce, nil
}

// Consume removes the nonce and reports whether it was still valid
func (s *MemoryStore) Consume(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt, exists := s.nonces[nonce]
	if !exists {
		return false, nil
	}
	delete(s.nonces, nonce)

	return !s.expired(createdAt, s.now()), nil
}

// purgeLocked must be called with mu held
func (s *MemoryStore) purgeLocked(now time.Time) {
	for nonce, createdAt := range s.nonces {
		if s.expired(createdAt, now) {
			delete(s.nonces, nonce)
		}
	}
}

func (s *MemoryStore) expired(createdAt, now time.Time) bool {
	return now.Sub(createdAt) > s.ttl
}
