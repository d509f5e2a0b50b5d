// internal/identity/cache.go
package identity

import "sync"

// NegativeCache remembers emails that could not be resolved to a login
// so repeated lookups never hit the host API again. Entries have no
// TTL and are never evicted. Implementations must be safe for
// concurrent use.
type NegativeCache interface {
	Contains(email string) bool
	Add(email string)
}

// MemoryNegativeCache is the in-process NegativeCache.
type MemoryNegativeCache struct {
	mu     sync.RWMutex
	emails map[string]struct{}
}

// NewMemoryNegativeCache creates an empty cache.
func NewMemoryNegativeCache() *MemoryNegativeCache {
	return &MemoryNegativeCache{emails: make(map[string]struct{})}
}

// Contains reports whether email is known unresolvable.
func (c *MemoryNegativeCache) Contains(email string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.emails[email]
	return ok
}

// Add records an unresolvable email.
func (c *MemoryNegativeCache) Add(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails[email] = struct{}{}
}
