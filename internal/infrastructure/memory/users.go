package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/citymate-api/internal/domain"
)

// UserStore keeps users in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) Put(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	s.users[u.UserID] = *u
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Email != nil && *u.Email == email })
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Phone != nil && *u.Phone == phone })
}

// Update applies updates keyed by stored attribute name, the same keys the
// DynamoDB repo accepts. A nil value removes the attribute.
func (s *UserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	for k, v := range updates {
		if v == nil {
			delete(item, k)
			continue
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", k, err)
		}
		item[k] = av
	}
	if item["updated_at"], err = attributevalue.Marshal(time.Now().UTC()); err != nil {
		return err
	}
	var updated domain.User
	if err := attributevalue.UnmarshalMap(item, &updated); err != nil {
		return fmt.Errorf("unmarshal user: %w", err)
	}
	if err := s.checkUnique(&updated); err != nil {
		return err
	}
	s.users[userID] = updated
	return nil
}

// checkUnique fails when another user holds u's username, email or phone.
// Callers must hold s.mu.
func (s *UserStore) checkUnique(u *domain.User) error {
	for id, other := range s.users {
		if id == u.UserID {
			continue
		}
		switch {
		case other.Username == u.Username:
			return fmt.Errorf("username %q already taken: %w", u.Username, domain.ErrConflict)
		case u.Email != nil && other.Email != nil && *other.Email == *u.Email:
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		case u.Phone != nil && other.Phone != nil && *other.Phone == *u.Phone:
			return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
		}
	}
	return nil
}

func (s *UserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}
