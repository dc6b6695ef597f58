// Package redisinfra stores pending verification state in Redis so it survives
// restarts and is shared between API instances.
package redisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/citymate-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "verification:"

type client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Connect parses url and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := redis.NewClient(opt)
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return r, nil
}

// VerificationStore keeps one JSON-encoded VerificationState per client session with a TTL.
type VerificationStore struct {
	client client
	ttl    time.Duration
}

func NewVerificationStore(c client, ttl time.Duration) *VerificationStore {
	return &VerificationStore{client: c, ttl: ttl}
}

func key(sessionID string) string { return keyPrefix + sessionID }

// Put replaces the state of sessionID and restarts its TTL.
func (s *VerificationStore) Put(ctx context.Context, sessionID string, st *domain.VerificationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode verification state: %w", err)
	}
	if err := s.client.Set(ctx, key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the state of sessionID, or ErrNotFound once it has expired.
func (s *VerificationStore) Get(ctx context.Context, sessionID string) (*domain.VerificationState, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification state: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var st domain.VerificationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode verification state: %w", err)
	}
	return &st, nil
}

func (s *VerificationStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
