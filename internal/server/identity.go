package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/swiper/internal/services"
)

// IdentityTTL bounds how long a token's owner is remembered, matching the access token lifetime.
const IdentityTTL = time.Hour

type identityEntry struct {
	userID    string
	expiresAt time.Time
}

// IdentityCache maps bearer tokens to the upstream user id so /me is fetched once per token.
//
// Tokens are stored as SHA-256 digests.
type IdentityCache struct {
	mu      sync.Mutex
	entries map[string]identityEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewIdentityCache creates an empty cache.
func NewIdentityCache(ttl time.Duration, now func() time.Time) *IdentityCache {
	if ttl <= 0 {
		ttl = IdentityTTL
	}
	if now == nil {
		now = time.Now
	}
	return &IdentityCache{
		entries: make(map[string]identityEntry),
		ttl:     ttl,
		now:     now,
	}
}

// UserID returns the id of the token's owner, asking client on a miss.
func (c *IdentityCache) UserID(ctx context.Context, token string, client services.Service) (string, error) {
	key := tokenKey(token)
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.userID, nil
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("upstream profile has no id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = identityEntry{userID: user.ID, expiresAt: now.Add(c.ttl)}
	return user.ID, nil
}

// Len returns the number of cached tokens.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
