package artnet

import (
	"testing"
	"time"

	"github.com/openlumen/lumen-core/internal/dmx"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func outputReply(bindIndex uint8, name string, universes ...uint8) *PollReplyPacket {
	reply := &PollReplyPacket{
		ShortName: name,
		Style:     StyleNode,
		BindIndex: bindIndex,
	}
	for i, u := range universes {
		if i >= 4 {
			break
		}
		reply.PortTypes[i] = PortCanOutput
		reply.SwOut[i] = u
	}
	return reply
}

// ─── Node discovery ──────────────────────────────────────────────────────────

func TestRegistryUpdateNode(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	isNew, changed := r.UpdateNode("192.168.1.50", outputReply(0, "node-a", 1, 2))
	if !isNew || !changed {
		t.Fatalf("first reply: isNew=%v changed=%v, want true true", isNew, changed)
	}

	// Same reply again: known node, same addresses.
	isNew, changed = r.UpdateNode("192.168.1.50", outputReply(0, "node-a", 1, 2))
	if isNew || changed {
		t.Fatalf("repeat reply: isNew=%v changed=%v, want false false", isNew, changed)
	}

	// Reconfigured ports count as a change.
	isNew, changed = r.UpdateNode("192.168.1.50", outputReply(0, "node-a", 1, 3))
	if isNew || !changed {
		t.Fatalf("new ports: isNew=%v changed=%v, want false true", isNew, changed)
	}

	// A second bind index on the same IP is a distinct binding.
	isNew, _ = r.UpdateNode("192.168.1.50", outputReply(1, "node-a", 4))
	if !isNew {
		t.Fatal("second bind index not treated as new")
	}
	if r.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", r.NodeCount())
	}
}

func TestRegistryNodesFor(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.UpdateNode("192.168.1.60", outputReply(0, "b", 5))
	r.UpdateNode("192.168.1.50", outputReply(0, "a", 5, 6))
	// Two bindings on one IP servicing the same universe dedupe to one
	// transmit target.
	r.UpdateNode("192.168.1.50", outputReply(1, "a", 5))

	got := r.NodesFor(dmx.PortAddress{Universe: 5})
	want := []string{"192.168.1.50", "192.168.1.60"}
	if len(got) != len(want) {
		t.Fatalf("NodesFor = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NodesFor[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if ips := r.NodesFor(dmx.PortAddress{Universe: 9}); len(ips) != 0 {
		t.Errorf("NodesFor unknown universe = %v, want empty", ips)
	}
}

func TestRegistryAddressReindexing(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.UpdateNode("192.168.1.50", outputReply(0, "a", 1))
	r.UpdateNode("192.168.1.50", outputReply(0, "a", 2))

	if ips := r.NodesFor(dmx.PortAddress{Universe: 1}); len(ips) != 0 {
		t.Errorf("old address still indexed: %v", ips)
	}
	if ips := r.NodesFor(dmx.PortAddress{Universe: 2}); len(ips) != 1 {
		t.Errorf("new address not indexed: %v", ips)
	}
}

// ─── Subscribers ─────────────────────────────────────────────────────────────

func TestRegistrySubscribers(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.Subscribe("192.168.1.20", &PollPacket{NotifyOnChange: true})
	r.Subscribe("192.168.1.10", &PollPacket{
		TargetedMode:   true,
		NotifyOnChange: true,
		TargetBottom:   dmx.PortAddress{Universe: 1},
		TargetTop:      dmx.PortAddress{Universe: 8},
	})

	got := r.Subscribers()
	want := []string{"192.168.1.10", "192.168.1.20"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Subscribers = %v, want %v", got, want)
	}

	// Re-subscribing refreshes rather than duplicates.
	r.Subscribe("192.168.1.20", &PollPacket{NotifyOnChange: true})
	if len(r.Subscribers()) != 2 {
		t.Errorf("Subscribers after refresh = %v, want 2 entries", r.Subscribers())
	}
}

// ─── Pruning ─────────────────────────────────────────────────────────────────

func TestRegistryPrune(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.UpdateNode("192.168.1.50", outputReply(0, "stale", 1))
	r.Subscribe("192.168.1.20", &PollPacket{NotifyOnChange: true})

	clock.Advance(6 * time.Second)
	r.UpdateNode("192.168.1.60", outputReply(0, "fresh", 2))

	// 9 s after the first sightings: everything still inside the cutoff.
	clock.Advance(3 * time.Second)
	nodes, subs := r.Prune()
	if len(nodes) != 0 || len(subs) != 0 {
		t.Fatalf("prune at 9s evicted nodes=%v subs=%v, want none", nodes, subs)
	}

	// 11 s: the first node and the subscriber age out, the fresh node
	// stays.
	clock.Advance(2 * time.Second)
	nodes, subs = r.Prune()
	if len(nodes) != 1 || nodes[0].IP != "192.168.1.50" {
		t.Fatalf("pruned nodes = %v, want the stale node", nodes)
	}
	if len(subs) != 1 || subs[0] != "192.168.1.20" {
		t.Fatalf("pruned subscribers = %v, want [192.168.1.20]", subs)
	}

	if r.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", r.NodeCount())
	}
	if ips := r.NodesFor(dmx.PortAddress{Universe: 1}); len(ips) != 0 {
		t.Errorf("evicted node still indexed: %v", ips)
	}
	if ips := r.NodesFor(dmx.PortAddress{Universe: 2}); len(ips) != 1 {
		t.Errorf("fresh node lost its index: %v", ips)
	}
}

func TestRegistryTouchKeepsSubscriberAlive(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(clock.Now)

	r.Subscribe("192.168.1.20", &PollPacket{NotifyOnChange: true})

	clock.Advance(8 * time.Second)
	r.Touch("192.168.1.20")

	clock.Advance(4 * time.Second)
	if _, subs := r.Prune(); len(subs) != 0 {
		t.Errorf("touched subscriber evicted: %v", subs)
	}

	clock.Advance(11 * time.Second)
	if _, subs := r.Prune(); len(subs) != 1 {
		t.Errorf("subscriber survived past cutoff: %v", subs)
	}
}
