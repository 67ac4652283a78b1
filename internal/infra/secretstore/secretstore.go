// Package secretstore defines the per-user secret bundle port plus a
// bounded, TTL-aware cache decorator. Design Notes §9 treats this cache as
// "part of the contract, not an optimisation": without it, warm-invocation
// cost is O(events) secret reads.
package secretstore

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spottypottysense/motionengine/internal/domain/secret"
)

// Store is the secret-store port (spec §6: get, put, invalidate, each
// backed by a local TTL cache).
type Store interface {
	Get(ctx context.Context, ref string) (*secret.Bundle, error)
	Put(ctx context.Context, ref string, b *secret.Bundle) error
	Invalidate(ctx context.Context, ref string)
}

// ErrNotFound is returned when ref has no bundle.
var ErrNotFound = notFoundErr("secretstore: not found")

type notFoundErr string

func (e notFoundErr) Error() string { return string(e) }

// InMemory is a reference backing implementation — a real deployment wires
// this port to Secrets Manager or similar; this module ships only the
// in-memory version needed to run and test the engine.
type InMemory struct {
	mu   sync.RWMutex
	byRef map[string]*secret.Bundle
}

// NewInMemory creates an empty in-memory backing store.
func NewInMemory() *InMemory {
	return &InMemory{byRef: make(map[string]*secret.Bundle)}
}

func (m *InMemory) Get(_ context.Context, ref string) (*secret.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *InMemory) Put(_ context.Context, ref string, b *secret.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.byRef[ref] = &cp
	return nil
}

// Invalidate is a no-op: InMemory holds no cache, so there is nothing to
// drop, and the stored bundle is kept.
func (m *InMemory) Invalidate(_ context.Context, _ string) {}

type cacheEntry struct {
	bundle    *secret.Bundle
	expiresAt time.Time
}

// Cached decorates a backing Store with an entry-local-TTL, size-bounded,
// LRU-evicted cache (Design Notes §9). Put and Invalidate always reach
// through to the backing store and update/clear the cache entry so a
// subsequent Get never serves a stale bundle.
type Cached struct {
	backing Store
	ttl     time.Duration
	cache   *lru.Cache[string, cacheEntry]
	now     func() time.Time
}

// DefaultTTL matches spec §6's "default 5 min" local TTL cache.
const DefaultTTL = 5 * time.Minute

// DefaultSize is a reasonable bound for a single warm process's working set
// of connected users.
const DefaultSize = 1024

// NewCached wraps backing with a bounded TTL cache. size<=0 uses
// DefaultSize; ttl<=0 uses DefaultTTL.
func NewCached(backing Store, size int, ttl time.Duration) (*Cached, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{backing: backing, ttl: ttl, cache: c, now: time.Now}, nil
}

func (c *Cached) Get(ctx context.Context, ref string) (*secret.Bundle, error) {
	if entry, ok := c.cache.Get(ref); ok && c.now().Before(entry.expiresAt) {
		cp := *entry.bundle
		return &cp, nil
	}

	b, err := c.backing.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	cp := *b
	c.cache.Add(ref, cacheEntry{bundle: &cp, expiresAt: c.now().Add(c.ttl)})
	return b, nil
}

func (c *Cached) Put(ctx context.Context, ref string, b *secret.Bundle) error {
	if err := c.backing.Put(ctx, ref, b); err != nil {
		return err
	}
	cp := *b
	c.cache.Add(ref, cacheEntry{bundle: &cp, expiresAt: c.now().Add(c.ttl)})
	return nil
}

func (c *Cached) Invalidate(ctx context.Context, ref string) {
	c.cache.Remove(ref)
	c.backing.Invalidate(ctx, ref)
}
