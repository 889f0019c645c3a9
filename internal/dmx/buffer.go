package dmx

import (
	"sort"
	"sync"
	"time"
)

// Buffer is the collection of active universes, keyed by flat universe
// ID. Universes are created on first reference and never removed while
// the engine runs; a disabled universe is simply no longer transmitted.
type Buffer struct {
	now func() time.Time

	mu        sync.RWMutex
	universes map[UniverseID]*Universe
}

// NewBuffer creates an empty universe collection. A nil clock defaults
// to time.Now.
func NewBuffer(now func() time.Time) *Buffer {
	if now == nil {
		now = time.Now
	}
	return &Buffer{
		now:       now,
		universes: make(map[UniverseID]*Universe),
	}
}

// Universe returns the buffer for id, creating it on first use.
func (b *Buffer) Universe(id UniverseID) *Universe {
	b.mu.RLock()
	u, ok := b.universes[id]
	b.mu.RUnlock()
	if ok {
		return u
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.universes[id]; ok {
		return u
	}
	u = NewUniverse(id, b.now)
	b.universes[id] = u
	return u
}

// Lookup returns the buffer for id without creating it.
func (b *Buffer) Lookup(id UniverseID) (*Universe, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.universes[id]
	return u, ok
}

// IDs returns the active universe IDs in ascending order.
func (b *Buffer) IDs() []UniverseID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]UniverseID, 0, len(b.universes))
	for id := range b.universes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Prune runs a liveness sweep across every universe and returns all
// evictions, for the scheduler to log.
func (b *Buffer) Prune() []Eviction {
	b.mu.RLock()
	universes := make([]*Universe, 0, len(b.universes))
	for _, u := range b.universes {
		universes = append(universes, u)
	}
	b.mu.RUnlock()

	var evicted []Eviction
	for _, u := range universes {
		evicted = append(evicted, u.Prune()...)
	}
	return evicted
}
