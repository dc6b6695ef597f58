package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/citymate-api/internal/domain"
)

// SessionStore keeps login sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

func (s *SessionStore) Put(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *sess
	stored.User = nil
	s.sessions[sess.SessionID] = stored
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return &sess, nil
}

func (s *SessionStore) Disable(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.Enable = false
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[sessionID] = sess
	return nil
}

func (s *SessionStore) DisableByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, sess := range s.sessions {
		if sess.UserID == userID && sess.Enable {
			sess.Enable = false
			sess.UpdatedAt = now
			s.sessions[id] = sess
		}
	}
	return nil
}
