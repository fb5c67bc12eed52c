package cache

import (
	"context"
	"time"

	"github.com/ppiankov/gazette/internal/model"
)

// TokenStore holds one bearer token per source until its TTL elapses.
// Get reports the expiry the backend holds for the entry.
type TokenStore interface {
	Get(ctx context.Context, sourceID string) (model.CachedCredential, bool)
	Put(ctx context.Context, sourceID string, token string, ttl time.Duration) error
	Delete(ctx context.Context, sourceID string) error
}

// TokenKey generates a namespaced key for a source id
func TokenKey(sourceID string) string {
	return "gazette:v1:token:" + sourceID
}
