package dmx

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeClock is an injectable time source for deterministic arbitration
// and liveness tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func slotsWith(values map[int]byte) []byte {
	out := make([]byte, SlotCount)
	for slot, v := range values {
		out[slot] = v
	}
	return out
}

// ─── Write validation ───

func TestApplyWriteValidation(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		offset  int
		data    []byte
		wantErr error
	}{
		{
			name:    "empty data",
			src:     Source{Transport: TransportLocal, ID: "local"},
			offset:  0,
			data:    nil,
			wantErr: ErrEmptyWrite,
		},
		{
			name:    "negative offset",
			src:     Source{Transport: TransportLocal, ID: "local"},
			offset:  -1,
			data:    []byte{1},
			wantErr: ErrSlotRange,
		},
		{
			name:    "overrun",
			src:     Source{Transport: TransportLocal, ID: "local"},
			offset:  510,
			data:    []byte{1, 2, 3},
			wantErr: ErrSlotRange,
		},
		{
			name:    "sacn priority above 200",
			src:     Source{Transport: TransportSACN, ID: "cid-1", Priority: 201},
			offset:  0,
			data:    []byte{1},
			wantErr: ErrPriorityRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUniverse(1, newFakeClock().Now)
			applied, err := u.ApplyWrite(tt.src, tt.offset, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyWrite error = %v, want %v", err, tt.wantErr)
			}
			if applied {
				t.Error("ApplyWrite applied an invalid write")
			}
		})
	}
}

// ─── Art-Net last-takes-precedence ───

func TestArtNetLastWriterWins(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	a := Source{Transport: TransportArtNet, ID: "10.0.0.5:6454"}
	b := Source{Transport: TransportArtNet, ID: "10.0.0.6:6454"}

	if applied, err := u.ApplyWrite(a, 0, []byte{10, 20, 30}); err != nil || !applied {
		t.Fatalf("first write: applied=%v err=%v", applied, err)
	}
	clock.Advance(10 * time.Millisecond)
	if applied, err := u.ApplyWrite(b, 0, []byte{99, 98, 97}); err != nil || !applied {
		t.Fatalf("second write: applied=%v err=%v", applied, err)
	}

	got := u.Snapshot()
	want := slotsWith(map[int]byte{0: 99, 1: 98, 2: 97})
	if !bytes.Equal(got, want) {
		t.Errorf("snapshot[0:3] = %v, want %v", got[:3], want[:3])
	}
}

func TestLocalWriteOverridesExternal(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	ext := Source{Transport: TransportArtNet, ID: "10.0.0.5:6454"}
	local := Source{Transport: TransportLocal, ID: "animation"}

	u.ApplyWrite(ext, 100, []byte{50})
	u.ApplyWrite(local, 100, []byte{200})

	if got := u.Snapshot()[100]; got != 200 {
		t.Errorf("slot 100 = %d, want 200 (local write wins)", got)
	}
}

// ─── sACN priority arbitration ───

func TestSACNHigherPriorityOwns(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	high := Source{Transport: TransportSACN, ID: "cid-high", Priority: 100}
	low := Source{Transport: TransportSACN, ID: "cid-low", Priority: 90}

	if applied, _ := u.ApplyWrite(high, 0, slotsWith(map[int]byte{0: 111})); !applied {
		t.Fatal("high-priority first write not applied")
	}
	clock.Advance(100 * time.Millisecond)
	if applied, _ := u.ApplyWrite(low, 0, slotsWith(map[int]byte{0: 222})); applied {
		t.Fatal("low-priority write applied while higher priority is live")
	}

	if got := u.Snapshot()[0]; got != 111 {
		t.Errorf("slot 0 = %d, want 111 (owner's data)", got)
	}
	if owner := u.Owner(); owner != "cid-high" {
		t.Errorf("Owner() = %q, want cid-high", owner)
	}
}

func TestSACNOwnershipFallsToNextPriorityAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	high := Source{Transport: TransportSACN, ID: "cid-high", Priority: 100}
	low := Source{Transport: TransportSACN, ID: "cid-low", Priority: 90}

	u.ApplyWrite(high, 0, slotsWith(map[int]byte{0: 111}))
	clock.Advance(100 * time.Millisecond)
	u.ApplyWrite(low, 0, slotsWith(map[int]byte{0: 222}))

	// High goes silent; low keeps refreshing inside the window.
	clock.Advance(2 * time.Second)
	u.ApplyWrite(low, 0, slotsWith(map[int]byte{0: 223}))
	clock.Advance(600 * time.Millisecond)

	evicted := u.Prune()
	if len(evicted) != 1 {
		t.Fatalf("Prune() evicted %d sources, want 1", len(evicted))
	}
	ev := evicted[0]
	if ev.SourceID != "cid-high" || !ev.WasOwner {
		t.Errorf("eviction = %+v, want cid-high as owner", ev)
	}

	if owner := u.Owner(); owner != "cid-low" {
		t.Errorf("Owner() after failover = %q, want cid-low", owner)
	}
	if got := u.Snapshot()[0]; got != 223 {
		t.Errorf("slot 0 after failover = %d, want 223 (successor's latest data)", got)
	}
}

func TestSACNEqualPriorityLatestWriteWins(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	a := Source{Transport: TransportSACN, ID: "cid-a", Priority: 100}
	b := Source{Transport: TransportSACN, ID: "cid-b", Priority: 100}

	u.ApplyWrite(a, 0, slotsWith(map[int]byte{0: 1}))
	clock.Advance(50 * time.Millisecond)
	if applied, _ := u.ApplyWrite(b, 0, slotsWith(map[int]byte{0: 2})); !applied {
		t.Fatal("equal-priority later writer did not take ownership")
	}
	if got := u.Snapshot()[0]; got != 2 {
		t.Errorf("slot 0 = %d, want 2 (latest write wins on tie)", got)
	}

	clock.Advance(50 * time.Millisecond)
	if applied, _ := u.ApplyWrite(a, 0, slotsWith(map[int]byte{0: 3})); !applied {
		t.Fatal("ownership did not move back to the newest writer")
	}
	if got := u.Snapshot()[0]; got != 3 {
		t.Errorf("slot 0 = %d, want 3", got)
	}
}

func TestSACNStreamTerminationPromotesSuccessor(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	high := Source{Transport: TransportSACN, ID: "cid-high", Priority: 150}
	low := Source{Transport: TransportSACN, ID: "cid-low", Priority: 50}

	u.ApplyWrite(high, 0, slotsWith(map[int]byte{5: 10}))
	clock.Advance(10 * time.Millisecond)
	u.ApplyWrite(low, 0, slotsWith(map[int]byte{5: 20}))

	if !u.RemoveSource("cid-high") {
		t.Fatal("RemoveSource did not find the owner")
	}
	if owner := u.Owner(); owner != "cid-low" {
		t.Errorf("Owner() after termination = %q, want cid-low", owner)
	}
	if got := u.Snapshot()[5]; got != 20 {
		t.Errorf("slot 5 = %d, want 20", got)
	}

	if u.RemoveSource("cid-high") {
		t.Error("RemoveSource found an already-removed source")
	}
}

func TestSACNNoLiveSourcesHoldsLastLook(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)

	src := Source{Transport: TransportSACN, ID: "cid-only", Priority: 100}
	u.ApplyWrite(src, 0, slotsWith(map[int]byte{7: 77}))

	clock.Advance(3 * time.Second)
	evicted := u.Prune()
	if len(evicted) != 1 || !evicted[0].WasOwner {
		t.Fatalf("Prune() = %+v, want one owner eviction", evicted)
	}

	if owner := u.Owner(); owner != "" {
		t.Errorf("Owner() = %q, want empty after sole source evicted", owner)
	}
	if got := u.Snapshot()[7]; got != 77 {
		t.Errorf("slot 7 = %d, want 77 (buffer holds last look)", got)
	}
}

// ─── Diff tracking ───

func TestTakeDiffMinimalRange(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)
	local := Source{Transport: TransportLocal, ID: "animation"}

	if _, _, changed := u.TakeDiff(); changed {
		t.Fatal("fresh universe reports changes")
	}

	u.ApplyWrite(local, 10, []byte{1, 2, 3})
	offset, data, changed := u.TakeDiff()
	if !changed {
		t.Fatal("TakeDiff() reported no change after a write")
	}
	if offset != 10 || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("TakeDiff() = offset %d data %v, want offset 10 data [1 2 3]", offset, data)
	}

	// Drained: a second call reports clean.
	if _, _, changed := u.TakeDiff(); changed {
		t.Error("TakeDiff() did not drain the dirty range")
	}

	// Rewriting identical bytes does not dirty the universe.
	u.ApplyWrite(local, 10, []byte{1, 2, 3})
	if _, _, changed := u.TakeDiff(); changed {
		t.Error("identical rewrite marked slots dirty")
	}
}

func TestTakeDiffWidensOverSparseWrites(t *testing.T) {
	clock := newFakeClock()
	u := NewUniverse(1, clock.Now)
	local := Source{Transport: TransportLocal, ID: "animation"}

	u.ApplyWrite(local, 2, []byte{1})
	u.ApplyWrite(local, 9, []byte{5})

	offset, data, changed := u.TakeDiff()
	if !changed || offset != 2 || len(data) != 8 {
		t.Fatalf("TakeDiff() = offset %d len %d changed %v, want offset 2 len 8", offset, len(data), changed)
	}
	if data[0] != 1 || data[7] != 5 {
		t.Errorf("diff endpoints = %d, %d, want 1, 5", data[0], data[7])
	}
}

// ─── Buffer collection ───

func TestBufferUniverseCreateAndLookup(t *testing.T) {
	b := NewBuffer(newFakeClock().Now)

	if _, ok := b.Lookup(4); ok {
		t.Fatal("Lookup found a universe before creation")
	}

	u := b.Universe(4)
	if u == nil || u.ID() != 4 {
		t.Fatalf("Universe(4) = %+v", u)
	}
	if again := b.Universe(4); again != u {
		t.Error("Universe(4) returned a different instance on second call")
	}

	b.Universe(2)
	b.Universe(9)
	ids := b.IDs()
	want := []UniverseID{2, 4, 9}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestBufferPruneSweepsAllUniverses(t *testing.T) {
	clock := newFakeClock()
	b := NewBuffer(clock.Now)

	src := Source{Transport: TransportSACN, ID: "cid-1", Priority: 100}
	b.Universe(1).ApplyWrite(src, 0, []byte{1})
	b.Universe(2).ApplyWrite(src, 0, []byte{2})

	clock.Advance(3 * time.Second)
	evicted := b.Prune()
	if len(evicted) != 2 {
		t.Fatalf("Prune() evicted %d, want 2", len(evicted))
	}
}
