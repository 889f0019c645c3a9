package artnet

import (
	"sort"
	"sync"
	"time"

	"github.com/openlumen/lumen-core/internal/dmx"
)

// StaleCutoff is how long a discovered node or change subscriber may stay
// silent before the prune sweep evicts it.
const StaleCutoff = 10 * time.Second

// Node is a discovered remote Art-Net node or controller.
type Node struct {
	Name      string
	IP        string
	BindIndex uint8
	OEM       uint16
	Style     uint8
	LastSeen  time.Time

	// Addresses are the port addresses the node outputs DMX on.
	Addresses []dmx.PortAddress
}

type nodeKey struct {
	ip        string
	bindIndex uint8
}

// Subscriber is a remote peer that asked for unsolicited ArtPollReply
// notifications via the ArtPoll notify flag.
type Subscriber struct {
	IP       string
	LastSeen time.Time

	// Targeted subscribers only care about a port-address range.
	Targeted     bool
	TargetBottom dmx.PortAddress
	TargetTop    dmx.PortAddress
}

// Registry owns the discovered-node and subscriber sets. Time is
// injected so pruning is testable without wall-clock delays.
//
// Mutation happens from the receive loop and the periodic sweep only, so
// a single lock over both sets is cheap.
type Registry struct {
	now func() time.Time

	mu          sync.Mutex
	nodes       map[nodeKey]*Node
	byAddress   map[uint16]map[nodeKey]*Node
	subscribers map[string]*Subscriber
}

// NewRegistry creates an empty registry. A nil clock defaults to
// time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		now:         now,
		nodes:       make(map[nodeKey]*Node),
		byAddress:   make(map[uint16]map[nodeKey]*Node),
		subscribers: make(map[string]*Subscriber),
	}
}

// UpdateNode records a poll reply from ip. Returns whether the node is
// newly discovered and whether its address set changed, so the caller
// can transmit current data to a node that just appeared.
func (r *Registry) UpdateNode(ip string, reply *PollReplyPacket) (isNew, addressesChanged bool) {
	key := nodeKey{ip: ip, bindIndex: reply.BindIndex}
	addrs := reply.OutputAddresses()

	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[key]
	if !ok {
		n = &Node{IP: ip, BindIndex: reply.BindIndex}
		r.nodes[key] = n
		isNew = true
	}
	n.Name = reply.ShortName
	n.OEM = reply.OEM
	n.Style = reply.Style
	n.LastSeen = r.now()

	addressesChanged = !samePortAddresses(n.Addresses, addrs)
	if addressesChanged {
		for _, old := range n.Addresses {
			r.unindexLocked(old, key)
		}
		n.Addresses = addrs
		for _, a := range addrs {
			r.indexLocked(a, key, n)
		}
	}
	return isNew, addressesChanged
}

// NodesFor returns the IPs of discovered nodes that output the given
// port address, sorted for stable transmit order.
func (r *Registry) NodesFor(addr dmx.PortAddress) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byAddress[addr.Packed()]
	ips := make([]string, 0, len(set))
	seen := make(map[string]bool, len(set))
	for key := range set {
		if !seen[key.ip] {
			seen[key.ip] = true
			ips = append(ips, key.ip)
		}
	}
	sort.Strings(ips)
	return ips
}

// NodeCount returns the number of discovered node bindings.
func (r *Registry) NodeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// Subscribe records a change subscriber, refreshing its liveness.
func (r *Registry) Subscribe(ip string, poll *PollPacket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscribers[ip]
	if !ok {
		s = &Subscriber{IP: ip}
		r.subscribers[ip] = s
	}
	s.LastSeen = r.now()
	s.Targeted = poll.TargetedMode
	s.TargetBottom = poll.TargetBottom
	s.TargetTop = poll.TargetTop
}

// Touch refreshes a subscriber's liveness without changing its target
// range. A no-op for unknown IPs.
func (r *Registry) Touch(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subscribers[ip]; ok {
		s.LastSeen = r.now()
	}
}

// Subscribers returns the current subscriber IPs, sorted.
func (r *Registry) Subscribers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ips := make([]string, 0, len(r.subscribers))
	for ip := range r.subscribers {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Prune evicts nodes and subscribers whose last activity exceeds
// StaleCutoff, returning what was removed so the caller can log it with
// address lists.
func (r *Registry) Prune() (nodes []*Node, subscribers []string) {
	cutoff := r.now().Add(-StaleCutoff)

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, n := range r.nodes {
		if n.LastSeen.After(cutoff) {
			continue
		}
		for _, a := range n.Addresses {
			r.unindexLocked(a, key)
		}
		delete(r.nodes, key)
		nodes = append(nodes, n)
	}

	for ip, s := range r.subscribers {
		if s.LastSeen.After(cutoff) {
			continue
		}
		delete(r.subscribers, ip)
		subscribers = append(subscribers, ip)
	}
	sort.Strings(subscribers)
	return nodes, subscribers
}

func (r *Registry) indexLocked(addr dmx.PortAddress, key nodeKey, n *Node) {
	packed := addr.Packed()
	set, ok := r.byAddress[packed]
	if !ok {
		set = make(map[nodeKey]*Node)
		r.byAddress[packed] = set
	}
	set[key] = n
}

func (r *Registry) unindexLocked(addr dmx.PortAddress, key nodeKey) {
	packed := addr.Packed()
	set := r.byAddress[packed]
	delete(set, key)
	if len(set) == 0 {
		delete(r.byAddress, packed)
	}
}

func samePortAddresses(a, b []dmx.PortAddress) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint16]int, len(a))
	for _, x := range a {
		seen[x.Packed()]++
	}
	for _, y := range b {
		seen[y.Packed()]--
		if seen[y.Packed()] < 0 {
			return false
		}
	}
	return true
}
