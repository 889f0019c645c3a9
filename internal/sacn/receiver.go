package sacn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// ReceiverConfig carries the immutable sACN receiver settings.
type ReceiverConfig struct {
	BindAddress string

	// Universes to join multicast groups for. Packets for universes
	// outside this set are dropped even when they arrive unicast.
	Universes []dmx.UniverseID

	// Preview marks universes that accept preview-flagged data. All
	// others drop it.
	Preview map[dmx.UniverseID]bool
}

type seqKey struct {
	cid      [16]byte
	universe dmx.UniverseID
}

// Receiver listens on UDP 5568, validates inbound E1.31 data, and feeds
// it into the universe buffer where priority arbitration happens.
type Receiver struct {
	cfg    ReceiverConfig
	log    *logging.Logger
	buffer *dmx.Buffer

	conn *net.UDPConn
	pc   *ipv4.PacketConn

	universes map[dmx.UniverseID]bool
	onApply   func(u dmx.UniverseID, sourceName string)

	mu  sync.Mutex
	seq map[seqKey]uint8

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewReceiver creates a receiver feeding the given buffer.
func NewReceiver(cfg ReceiverConfig, buffer *dmx.Buffer, log *logging.Logger) *Receiver {
	universes := make(map[dmx.UniverseID]bool, len(cfg.Universes))
	for _, u := range cfg.Universes {
		universes[u] = true
	}
	return &Receiver{
		cfg:       cfg,
		log:       log.With("component", "sacn-receiver"),
		buffer:    buffer,
		universes: universes,
		seq:       make(map[seqKey]uint8),
		done:      make(chan struct{}),
	}
}

// OnApply sets a callback invoked after each accepted data write. Must
// be called before Start.
func (r *Receiver) OnApply(h func(u dmx.UniverseID, sourceName string)) {
	r.onApply = h
}

// Start binds the socket, joins the multicast group of every configured
// universe, and launches the receive loop.
func (r *Receiver) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", r.cfg.BindAddress, UDPPort))
	if err != nil {
		return fmt.Errorf("resolving bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", laddr, err)
	}
	r.conn = conn
	r.pc = ipv4.NewPacketConn(conn)

	for _, u := range r.cfg.Universes {
		group := &net.UDPAddr{IP: MulticastGroup(u)}
		if err := r.pc.JoinGroup(nil, group); err != nil {
			conn.Close()
			return fmt.Errorf("joining group %s for universe %d: %w", group.IP, u, err)
		}
	}

	r.wg.Add(1)
	go r.readLoop()

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	r.log.Info("sacn receiver listening",
		"bind", laddr.String(),
		"universes", len(r.cfg.Universes))
	return nil
}

// Stop closes the socket and waits for the loop to exit.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.conn != nil {
			r.conn.Close()
		}
		r.wg.Wait()
		r.log.Info("sacn receiver stopped",
			"received", r.received.Load(),
			"dropped", r.dropped.Load())
	})
}

func (r *Receiver) readLoop() {
	defer r.wg.Done()

	buf := make([]byte, 1144)
	for {
		n, remote, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-r.done:
				return
			default:
			}
			r.log.Warn("sacn read failed", "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		r.handleDatagram(data, remote)
	}
}

func (r *Receiver) handleDatagram(data []byte, remote *net.UDPAddr) {
	r.received.Add(1)

	vector, err := RootVector(data)
	if err != nil {
		r.dropped.Add(1)
		r.log.Debug("dropping malformed datagram", "remote", remote.String(), "error", err)
		return
	}

	switch vector {
	case vectorRootData:
		pkt, err := ParseData(data)
		if err != nil {
			r.dropped.Add(1)
			r.log.Debug("dropping malformed data packet", "remote", remote.String(), "error", err)
			return
		}
		if err := r.Process(pkt); err != nil {
			r.dropped.Add(1)
			r.log.Debug("dropping data packet", "remote", remote.String(), "error", err)
		}

	case vectorRootExtended:
		// Universe synchronization is accepted and intentionally not
		// acted upon; data is applied as it arrives.
		r.log.Debug("ignoring sync packet", "remote", remote.String())

	default:
		r.dropped.Add(1)
		r.log.Debug("ignoring unsupported root vector",
			"vector", fmt.Sprintf("0x%08X", vector), "remote", remote.String())
	}
}

// Process applies one validated data packet to the universe buffer:
// sequence window, preview filtering, termination handling, then the
// priority-arbitrated write.
func (r *Receiver) Process(pkt *DataPacket) error {
	if !r.universes[pkt.Universe] {
		return fmt.Errorf("universe %d not configured", pkt.Universe)
	}

	cid := uuid.UUID(pkt.CID).String()
	key := seqKey{cid: pkt.CID, universe: pkt.Universe}

	r.mu.Lock()
	last, seen := r.seq[key]
	if seen && !acceptSequence(last, pkt.Sequence) {
		r.mu.Unlock()
		return fmt.Errorf("%w: last %d, got %d", ErrSequenceGap, last, pkt.Sequence)
	}
	r.seq[key] = pkt.Sequence
	if pkt.Terminated {
		delete(r.seq, key)
	}
	r.mu.Unlock()

	universe := r.buffer.Universe(pkt.Universe)

	if pkt.Terminated {
		if universe.RemoveSource(cid) {
			r.log.Info("sacn source terminated stream",
				"universe", uint16(pkt.Universe),
				"source", pkt.SourceName,
				"cid", cid)
		}
		return nil
	}

	if pkt.Preview && !r.cfg.Preview[pkt.Universe] {
		return fmt.Errorf("preview data not enabled for universe %d", pkt.Universe)
	}

	src := dmx.Source{
		Transport: dmx.TransportSACN,
		ID:        cid,
		Priority:  pkt.Priority,
	}
	if _, err := universe.ApplyWrite(src, 0, pkt.Data); err != nil {
		return err
	}
	if r.onApply != nil {
		r.onApply(pkt.Universe, pkt.SourceName)
	}
	return nil
}

// Sweep prunes expired sources across the buffer, logs evictions, and
// returns them for event publishing. Called from the owner's periodic
// maintenance tick.
func (r *Receiver) Sweep() []dmx.Eviction {
	evictions := r.buffer.Prune()
	for _, ev := range evictions {
		level := r.log.Debug
		if ev.WasOwner {
			level = r.log.Warn
		}
		level("sacn source expired",
			"universe", uint16(ev.Universe),
			"cid", ev.SourceID,
			"priority", ev.Priority,
			"was_owner", ev.WasOwner)
	}
	return evictions
}
