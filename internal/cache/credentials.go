package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ppiankov/gazette/internal/model"
)

// ErrEmptyToken is returned when a refresh succeeds without producing a token
var ErrEmptyToken = errors.New("refresh returned an empty token")

// RefreshFunc obtains a fresh token and how long it stays valid.
// A non-positive TTL means "use the cache default".
type RefreshFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// CredentialCache keeps one bearer token per source and serialises refreshes
// so that at most one exchange per source is in flight.
type CredentialCache struct {
	store      TokenStore
	defaultTTL time.Duration
	now        func() time.Time

	locks map[string]*sync.Mutex
	mu    sync.RWMutex
}

// NewCredentialCache creates a credential cache over store
func NewCredentialCache(store TokenStore, defaultTTL time.Duration) *CredentialCache {
	if defaultTTL <= 0 {
		defaultTTL = 50 * time.Minute
	}
	return &CredentialCache{
		store:      store,
		defaultTTL: defaultTTL,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Get returns the cached credential for a source; a credential past its
// expiry is a miss even when the backend still holds it
func (c *CredentialCache) Get(ctx context.Context, sourceID string) (model.CachedCredential, bool) {
	cred, ok := c.store.Get(ctx, sourceID)
	if !ok || !cred.Valid(c.now()) {
		return model.CachedCredential{}, false
	}
	return cred, true
}

// Put stores a token for a source, replacing any previous one
func (c *CredentialCache) Put(ctx context.Context, sourceID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.store.Put(ctx, sourceID, token, ttl)
}

// Invalidate drops the token for a source, forcing the next call to refresh
func (c *CredentialCache) Invalidate(ctx context.Context, sourceID string) error {
	return c.store.Delete(ctx, sourceID)
}

// Token returns the cached token for sourceID, calling refresh on a miss.
// Concurrent callers for the same source wait for a single refresh.
func (c *CredentialCache) Token(ctx context.Context, sourceID string, refresh RefreshFunc) (string, error) {
	if cred, ok := c.Get(ctx, sourceID); ok {
		return cred.Token, nil
	}

	lock := c.lockFor(sourceID)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited
	if cred, ok := c.Get(ctx, sourceID); ok {
		return cred.Token, nil
	}

	token, ttl, err := refresh(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrEmptyToken
	}

	// A failed cache write still leaves a usable token for this call
	_ = c.Put(ctx, sourceID, token, ttl)

	return token, nil
}

// lockFor returns the refresh mutex for a source
func (c *CredentialCache) lockFor(sourceID string) *sync.Mutex {
	c.mu.RLock()
	lock, exists := c.locks[sourceID]
	c.mu.RUnlock()

	if exists {
		return lock
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if lock, exists := c.locks[sourceID]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	c.locks[sourceID] = lock
	return lock
}
