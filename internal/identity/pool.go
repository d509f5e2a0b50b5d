// internal/identity/pool.go
package identity

import (
	"math/rand"
	"sync"
)

// CredentialPool is a shared set of host API credentials. One is chosen
// uniformly at random per call; credentials that fail authorization are
// evicted. Implementations must be safe for concurrent use.
type CredentialPool interface {
	Random() (string, bool)
	Evict(token string)
	Add(tokens ...string)
	Len() int
}

// MemoryPool is the in-process CredentialPool.
type MemoryPool struct {
	mu     sync.Mutex
	tokens []string
}

// NewMemoryPool creates a pool seeded with the given tokens.
func NewMemoryPool(tokens ...string) *MemoryPool {
	p := &MemoryPool{}
	p.Add(tokens...)
	return p
}

// Random picks one credential uniformly at random.
func (p *MemoryPool) Random() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return "", false
	}
	return p.tokens[rand.Intn(len(p.tokens))], true
}

// Evict removes a credential that returned an authorization or
// suspension error.
func (p *MemoryPool) Evict(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.tokens {
		if t == token {
			p.tokens = append(p.tokens[:i], p.tokens[i+1:]...)
			return
		}
	}
}

// Add inserts credentials, skipping duplicates and empty strings.
func (p *MemoryPool) Add(tokens ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tokens {
		if t == "" {
			continue
		}
		exists := false
		for _, have := range p.tokens {
			if have == t {
				exists = true
				break
			}
		}
		if !exists {
			p.tokens = append(p.tokens, t)
		}
	}
}

// Len returns the number of live credentials.
func (p *MemoryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}
