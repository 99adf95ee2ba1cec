package auth

import (
	"sync"
	"time"
)

// TokenBlacklist remembers revoked tokens until they would have expired.
type TokenBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add revokes token for ttl. A non-positive ttl means the token is already
// expired and nothing is stored.
func (b *TokenBlacklist) Add(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[token] = b.now().Add(ttl)
	b.purgeLocked()
	return nil
}

func (b *TokenBlacklist) IsBlacklisted(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.entries[token]
	if !ok {
		return false
	}
	if b.now().After(until) {
		delete(b.entries, token)
		return false
	}
	return true
}

func (b *TokenBlacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purgeLocked()
	return len(b.entries)
}

func (b *TokenBlacklist) purgeLocked() {
	now := b.now()
	for token, until := range b.entries {
		if now.After(until) {
			delete(b.entries, token)
		}
	}
}
