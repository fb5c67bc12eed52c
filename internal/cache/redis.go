package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/gazette/internal/model"
)

// RedisStore shares tokens between monitor processes through Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new store backed by Redis
func NewRedisStore(addr string, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb}
}

// Get retrieves a token and its remaining TTL in one round trip; a missing
// key or an unreachable server is a miss
func (s *RedisStore) Get(ctx context.Context, sourceID string) (model.CachedCredential, bool) {
	key := TokenKey(sourceID)

	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.CachedCredential{}, false
	}

	cred := model.CachedCredential{Token: get.Val()}
	// PTTL answers negative for keys without an expiry
	if d := ttl.Val(); d > 0 {
		cred.ExpiresAt = time.Now().Add(d)
	}
	return cred, true
}

// Put stores a token with SET EX semantics
func (s *RedisStore) Put(ctx context.Context, sourceID string, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis token ttl must be positive, got %v", ttl)
	}
	if err := s.client.Set(ctx, TokenKey(sourceID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a token
func (s *RedisStore) Delete(ctx context.Context, sourceID string) error {
	err := s.client.Del(ctx, TokenKey(sourceID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
