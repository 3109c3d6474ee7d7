// Package cache is the Cache Manager (spec.md §4.5): a set of named caches
// a plugin or built-in node can use to memoize expensive derived data (a
// compiled shader, a decoded image) keyed by the owning NodeID. It is
// deliberately separate from the Execution Engine's per-run OutputCache:
// an entry is evicted only by expiry, Clear, or InvalidateNode. An
// Execution Engine wired with engine.WithCache calls InvalidateNode both
// when it marks a node dirty and when the node is removed, so under that
// wiring an entry does not survive a parameter change to its node or to
// any node upstream of it.
package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/nodeloom/core/internal/ids"
)

// DefaultTTL is used for entries put without an explicit expiry. Zero means
// "no expiry" is requested instead via PutNoExpire.
const DefaultTTL = 10 * time.Minute

// Manager owns a set of independently named caches, each keyed by NodeID.
type Manager struct {
	caches map[string]*ttlcache.Cache[ids.NodeID, any]
}

// New returns a Manager with no registered caches.
func New() *Manager {
	return &Manager{caches: make(map[string]*ttlcache.Cache[ids.NodeID, any])}
}

// RegisterCache creates a new named cache. Registering the same name twice
// replaces the previous cache, stopping its eviction goroutine first; this
// mirrors a plugin reloading and re-declaring the caches it owns.
func (m *Manager) RegisterCache(name string) {
	if old, ok := m.caches[name]; ok {
		old.Stop()
	}
	c := ttlcache.New[ids.NodeID, any](
		ttlcache.WithTTL[ids.NodeID, any](DefaultTTL),
	)
	go c.Start()
	m.caches[name] = c
}

// Get returns the cached value for id in the named cache. ok is false if
// the cache does not exist, or the entry is absent or expired.
func (m *Manager) Get(name string, id ids.NodeID) (value any, ok bool) {
	c, exists := m.caches[name]
	if !exists {
		return nil, false
	}
	item := c.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Put stores value for id in the named cache with DefaultTTL. Putting into
// an unregistered cache name is a no-op: a plugin that forgot to register
// its cache loses the memoization benefit but nothing else breaks.
func (m *Manager) Put(name string, id ids.NodeID, value any) {
	m.PutWithTTL(name, id, value, DefaultTTL)
}

// PutNoExpire stores value for id with no expiry; only InvalidateNode,
// Clear or a later Put evicts it.
func (m *Manager) PutNoExpire(name string, id ids.NodeID, value any) {
	m.PutWithTTL(name, id, value, ttlcache.NoTTL)
}

// PutWithTTL stores value for id with a caller-chosen expiry.
func (m *Manager) PutWithTTL(name string, id ids.NodeID, value any, ttl time.Duration) {
	c, ok := m.caches[name]
	if !ok {
		return
	}
	c.Set(id, value, ttl)
}

// InvalidateNode evicts id from every registered cache. The Execution
// Engine calls this when a node is marked Dirty, and the Graph Store's
// NodeRemoved event handler calls it on removal, so a cache never outlives
// the node it was keyed by.
func (m *Manager) InvalidateNode(id ids.NodeID) {
	for _, c := range m.caches {
		c.Delete(id)
	}
}

// Clear empties the named cache, leaving it registered. Clearing an
// unregistered name is a no-op.
func (m *Manager) Clear(name string) {
	if c, ok := m.caches[name]; ok {
		c.DeleteAll()
	}
}

// Close stops every cache's eviction goroutine. Call once, when the Editor
// shuts down.
func (m *Manager) Close() {
	for _, c := range m.caches {
		c.Stop()
	}
}
