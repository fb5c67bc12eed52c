package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/gazette/internal/model"
)

// MemoryStore implements in-memory token caching
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a token and its expiry; expired entries are reported as absent
func (s *MemoryStore) Get(_ context.Context, sourceID string) (model.CachedCredential, bool) {
	val, expiresAt, found := s.cache.GetWithExpiration(TokenKey(sourceID))
	if !found {
		return model.CachedCredential{}, false
	}
	return model.CachedCredential{Token: val.(string), ExpiresAt: expiresAt}, true
}

// Put stores a token with the given TTL (0 uses the store default)
func (s *MemoryStore) Put(_ context.Context, sourceID string, token string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(TokenKey(sourceID), token, ttl)
	return nil
}

// Delete removes a token from the store
func (s *MemoryStore) Delete(_ context.Context, sourceID string) error {
	s.cache.Delete(TokenKey(sourceID))
	return nil
}
