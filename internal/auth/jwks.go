package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// jwksRefreshInterval is the periodic refresh cadence, independent of any
// on-demand refresh triggered by an unknown kid.
const jwksRefreshInterval = 3600 * time.Second

// JWKSCache holds the identity provider's current key set behind a
// reader-preferred lock: verifications (the hot path) only ever take the
// read lock, and a refresh swaps the set wholesale under the write lock.
type JWKSCache struct {
	url string

	mu  sync.RWMutex
	set jwk.Set
}

// NewJWKSCache builds a cache pointed at a JWKS URL and performs an initial
// fetch so the first request does not pay a cold-start penalty.
func NewJWKSCache(ctx context.Context, jwksURL string) (*JWKSCache, error) {
	c := &JWKSCache{url: jwksURL}
	if err := c.refresh(ctx); err != nil {
		return nil, fmt.Errorf("jwks: initial fetch: %w", err)
	}
	return c, nil
}

// NewJWKSCacheFromSet builds a cache around an already-resolved key set,
// skipping the HTTP fetch. The cache has no url, so a refresh (periodic or
// on an unknown kid) fails and leaves the set unchanged; Lookup of a kid
// that is not in the set returns an error.
func NewJWKSCacheFromSet(set jwk.Set) *JWKSCache {
	return &JWKSCache{set: set}
}

// Run refreshes the key set every jwksRefreshInterval until ctx is
// cancelled. Refresh failures are logged and the stale set is kept in
// place: a failed periodic refresh must never clear an otherwise-valid
// cache.
func (c *JWKSCache) Run(ctx context.Context) {
	ticker := time.NewTicker(jwksRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				log.Printf("[auth] periodic JWKS refresh failed, keeping stale set: %v", err)
			}
		}
	}
}

// refresh fetches the key set and swaps it in atomically under the write
// lock.
func (c *JWKSCache) refresh(ctx context.Context) error {
	set, err := jwk.Fetch(ctx, c.url)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.set = set
	c.mu.Unlock()
	return nil
}

// Lookup resolves kid to an RSA public key. If kid is not found in the
// current set, it performs a single on-demand refresh and retries once
// before giving up.
func (c *JWKSCache) Lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := c.find(kid); ok {
		return key, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, fmt.Errorf("jwks: refresh on unknown kid %q: %w", kid, err)
	}
	if key, ok := c.find(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("jwks: unknown kid %q", kid)
}

func (c *JWKSCache) find(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set == nil {
		return nil, false
	}
	key, ok := c.set.LookupKeyID(kid)
	if !ok {
		return nil, false
	}
	var raw rsa.PublicKey
	if err := key.Raw(&raw); err != nil {
		return nil, false
	}
	return &raw, true
}
