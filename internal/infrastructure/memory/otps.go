// Package memory provides in-process implementations of the stores, used for
// local development and tests when STORE_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/citymate-api/internal/domain"
)

type slot struct {
	purpose domain.Purpose
	contact string
}

// OTPStore keeps one-time codes in memory. The slot index holds the single live
// code id per (purpose, contact).
type OTPStore struct {
	mu    sync.Mutex
	byID  map[string]domain.OneTimeCode
	slots map[slot]string
}

func NewOTPStore() *OTPStore {
	return &OTPStore{
		byID:  make(map[string]domain.OneTimeCode),
		slots: make(map[slot]string),
	}
}

// Replace stores c and drops the code that previously occupied its slot.
func (s *OTPStore) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := slot{purpose: c.Purpose, contact: c.Contact}
	if prev, ok := s.slots[k]; ok {
		delete(s.byID, prev)
	}
	s.byID[c.CodeID] = *c
	s.slots[k] = c.CodeID
	return nil
}

// Get returns a copy of the code with the given id, expired or not.
func (s *OTPStore) Get(ctx context.Context, codeID string) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[codeID]
	if !ok {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

// Delete removes c. The slot is released only if it still points at c.
func (s *OTPStore) Delete(ctx context.Context, c *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, c.CodeID)
	k := slot{purpose: c.Purpose, contact: c.Contact}
	if s.slots[k] == c.CodeID {
		delete(s.slots, k)
	}
	return nil
}

// Live returns the number of codes currently stored for (purpose, contact).
func (s *OTPStore) Live(purpose domain.Purpose, contact string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.byID {
		if c.Purpose == purpose && c.Contact == contact {
			n++
		}
	}
	return n
}
