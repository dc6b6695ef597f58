package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/citymate-api/internal/domain"
)

type pendingEntry struct {
	data      []byte
	expiresAt time.Time
}

// VerificationStore holds pending verification state per client session until ttl elapses.
// Entries are stored encoded so callers never share state with the store.
type VerificationStore struct {
	mu   sync.Mutex
	m    map[string]pendingEntry
	ttl  time.Duration
	nowF func() time.Time
}

func NewVerificationStore(ttl time.Duration) *VerificationStore {
	return &VerificationStore{
		m:    make(map[string]pendingEntry),
		ttl:  ttl,
		nowF: time.Now,
	}
}

// Put replaces whatever state sessionID held and refreshes its expiry.
func (s *VerificationStore) Put(ctx context.Context, sessionID string, st *domain.VerificationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode verification state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionID] = pendingEntry{data: data, expiresAt: s.nowF().Add(s.ttl)}
	return nil
}

// Get returns the state for sessionID. Missing or expired entries yield ErrNotFound.
func (s *VerificationStore) Get(ctx context.Context, sessionID string) (*domain.VerificationState, error) {
	s.mu.Lock()
	e, ok := s.m[sessionID]
	if ok && !e.expiresAt.After(s.nowF()) {
		delete(s.m, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("verification state: %w", domain.ErrNotFound)
	}
	var st domain.VerificationState
	if err := json.Unmarshal(e.data, &st); err != nil {
		return nil, fmt.Errorf("decode verification state: %w", err)
	}
	return &st, nil
}

func (s *VerificationStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
	return nil
}
