package dmx

import (
	"fmt"
	"sync"
	"time"
)

// LivenessWindow is how long an sACN source may stay silent before it is
// evicted from arbitration (E1.31 network data loss timeout).
const LivenessWindow = 2500 * time.Millisecond

// MaxPriority is the E1.31 priority ceiling.
const MaxPriority = 200

// Universe is one authoritative 512-slot DMX buffer with per-transport
// write arbitration and changed-range tracking.
//
// All methods are safe for concurrent use. Independent universes carry
// independent locks.
type Universe struct {
	id  UniverseID
	now func() time.Time

	mu        sync.Mutex
	slots     [SlotCount]byte
	sources   map[string]*sourceState
	owner     string // "" = no external sACN owner
	dirtyLo   int    // -1 when clean
	dirtyHi   int
	lastWrite time.Time
}

// NewUniverse creates an empty universe. A nil clock defaults to
// time.Now; tests inject a fake.
func NewUniverse(id UniverseID, now func() time.Time) *Universe {
	if now == nil {
		now = time.Now
	}
	return &Universe{
		id:      id,
		now:     now,
		sources: make(map[string]*sourceState),
		dirtyLo: -1,
		dirtyHi: -1,
	}
}

// ID returns the universe's flat identifier.
func (u *Universe) ID() UniverseID { return u.id }

// ApplyWrite merges data into the universe at the given 0-based slot
// offset under the source transport's arbitration rule.
//
// Local and Art-Net writes always apply (last-takes-precedence). sACN
// writes first update the source's arbitration record and snapshot, then
// apply only when the source holds or newly wins priority ownership.
//
// Returns:
//   - applied: whether the canonical buffer reflects this write.
//   - error: slot range or priority validation failure. Arbitration
//     losses are not errors.
func (u *Universe) ApplyWrite(src Source, offset int, data []byte) (bool, error) {
	if len(data) == 0 {
		return false, ErrEmptyWrite
	}
	if offset < 0 || offset+len(data) > SlotCount {
		return false, fmt.Errorf("%w: offset %d length %d", ErrSlotRange, offset, len(data))
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()

	if src.Transport != TransportSACN {
		u.writeSlotsLocked(offset, data)
		u.lastWrite = now
		return true, nil
	}

	if src.Priority > MaxPriority {
		return false, fmt.Errorf("%w: %d", ErrPriorityRange, src.Priority)
	}

	st, ok := u.sources[src.ID]
	if !ok {
		st = &sourceState{}
		u.sources[src.ID] = st
	}
	st.priority = src.Priority
	st.lastWrite = now
	copy(st.slots[offset:], data)

	u.evictStaleLocked(now, nil)
	u.electOwnerLocked()

	if u.owner != src.ID {
		return false, nil
	}
	u.writeSlotsLocked(offset, data)
	u.lastWrite = now
	return true, nil
}

// Snapshot returns a copy of the full 512-slot buffer.
func (u *Universe) Snapshot() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]byte, SlotCount)
	copy(out, u.slots[:])
	return out
}

// TakeDiff drains the contiguous range of slots changed since the last
// call. Returns the 0-based offset of the range, a copy of its bytes,
// and whether anything changed at all.
func (u *Universe) TakeDiff() (int, []byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dirtyLo < 0 {
		return 0, nil, false
	}
	out := make([]byte, u.dirtyHi-u.dirtyLo+1)
	copy(out, u.slots[u.dirtyLo:u.dirtyHi+1])
	lo := u.dirtyLo
	u.dirtyLo, u.dirtyHi = -1, -1
	return lo, out, true
}

// LastWrite returns the time of the most recent applied write. The
// refresh scheduler uses it to suppress retransmission of universes that
// are already being actively driven.
func (u *Universe) LastWrite() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastWrite
}

// Owner returns the source ID of the current sACN universe owner, or ""
// when no external source holds priority.
func (u *Universe) Owner() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.owner
}

// SourceCount returns how many sACN sources currently contend for the
// universe.
func (u *Universe) SourceCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.sources)
}

// RemoveSource drops one sACN source immediately, e.g. on an explicit
// stream-terminated packet. Ownership is re-elected and the successor's
// data promoted, exactly as on a liveness eviction.
func (u *Universe) RemoveSource(sourceID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.sources[sourceID]; !ok {
		return false
	}
	delete(u.sources, sourceID)
	if u.owner == sourceID {
		u.owner = ""
		u.electOwnerLocked()
	}
	return true
}

// Prune evicts every sACN source whose last write is older than
// LivenessWindow and reports what was removed. Called by the scheduler's
// periodic sweep.
func (u *Universe) Prune() []Eviction {
	u.mu.Lock()
	defer u.mu.Unlock()

	var evicted []Eviction
	u.evictStaleLocked(u.now(), &evicted)
	u.electOwnerLocked()
	return evicted
}

// evictStaleLocked removes sources outside the liveness window. The
// caller holds u.mu and re-elects ownership afterwards.
func (u *Universe) evictStaleLocked(now time.Time, report *[]Eviction) {
	for id, st := range u.sources {
		if now.Sub(st.lastWrite) <= LivenessWindow {
			continue
		}
		delete(u.sources, id)
		wasOwner := u.owner == id
		if wasOwner {
			u.owner = ""
		}
		if report != nil {
			*report = append(*report, Eviction{
				Universe: u.id,
				SourceID: id,
				Priority: st.priority,
				LastSeen: st.lastWrite,
				WasOwner: wasOwner,
			})
		}
	}
}

// electOwnerLocked picks the live source with the highest priority, ties
// broken by most recent write. When ownership moves to a different
// source, that source's snapshot is promoted into the canonical buffer
// so receivers converge on the new owner's data. With no live sources
// the buffer holds its last look.
func (u *Universe) electOwnerLocked() {
	var (
		bestID string
		best   *sourceState
	)
	for id, st := range u.sources {
		if best == nil ||
			st.priority > best.priority ||
			(st.priority == best.priority && st.lastWrite.After(best.lastWrite)) {
			bestID, best = id, st
		}
	}

	if bestID == u.owner {
		return
	}
	u.owner = bestID
	if best != nil {
		u.writeSlotsLocked(0, best.slots[:])
		u.lastWrite = best.lastWrite
	}
}

// writeSlotsLocked copies data into the canonical buffer and widens the
// dirty range over the slots that actually changed.
func (u *Universe) writeSlotsLocked(offset int, data []byte) {
	for i, b := range data {
		slot := offset + i
		if u.slots[slot] == b {
			continue
		}
		u.slots[slot] = b
		if u.dirtyLo < 0 || slot < u.dirtyLo {
			u.dirtyLo = slot
		}
		if slot > u.dirtyHi {
			u.dirtyHi = slot
		}
	}
}
