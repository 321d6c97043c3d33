package cache

import (
	"context"
	"time"
)

const authReferenceNamespace = "auth-ref"

// AuthReferences stages the authorization_reference of a remote start until
// the station opens the transaction for that id token.
type AuthReferences struct {
	cache *Cache
	ttl   time.Duration
}

func NewAuthReferences(c *Cache, ttl time.Duration) *AuthReferences {
	return &AuthReferences{cache: c, ttl: ttl}
}

func (a *AuthReferences) Stage(ctx context.Context, idToken, reference string) error {
	return a.cache.Set(ctx, authReferenceNamespace, idToken, reference, a.ttl)
}

// Consume returns the staged reference and removes it.
func (a *AuthReferences) Consume(ctx context.Context, idToken string) (string, bool, error) {
	return a.cache.GetDel(ctx, authReferenceNamespace, idToken)
}
