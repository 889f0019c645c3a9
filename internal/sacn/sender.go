package sacn

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// terminationRepeats is how many stream-terminated packets a closing
// sender emits per universe, per E1.31 §6.2.6.
const terminationRepeats = 3

// SenderConfig carries the immutable sACN sender settings.
type SenderConfig struct {
	BindAddress string
	SourceName  string

	// Priority is the default for universes without an override.
	Priority uint8

	// MulticastTTL bounds how many router hops multicast data survives.
	MulticastTTL int
}

type senderUniverse struct {
	priority uint8
	unicast  []string // when set, replaces multicast for this universe
	syncAddr uint16   // when set, data is held by receivers until the sync packet
	seq      uint8
	syncSeq  uint8
	lastData []byte
}

// nextData builds the next data packet for this universe, advancing the
// stream sequence. Callers hold the sender mutex.
func (su *senderUniverse) nextData(cid uuid.UUID, name string, u dmx.UniverseID, data []byte, terminated bool) *DataPacket {
	su.seq++
	return &DataPacket{
		CID:        [16]byte(cid),
		SourceName: name,
		Priority:   su.priority,
		SyncAddr:   su.syncAddr,
		Sequence:   su.seq,
		Universe:   u,
		Data:       data,
		Terminated: terminated,
	}
}

// nextSync builds the sync packet releasing the universe's held data.
// Callers hold the sender mutex.
func (su *senderUniverse) nextSync(cid uuid.UUID) *SyncPacket {
	su.syncSeq++
	return &SyncPacket{
		CID:      [16]byte(cid),
		Sequence: su.syncSeq,
		SyncAddr: su.syncAddr,
	}
}

// Sender transmits universe data as an E1.31 source with a stable CID.
type Sender struct {
	cfg SenderConfig
	log *logging.Logger
	cid uuid.UUID

	conn *net.UDPConn
	pc   *ipv4.PacketConn

	mu        sync.Mutex
	universes map[dmx.UniverseID]*senderUniverse
}

// NewSender creates a sender. The CID is generated once and identifies
// this source for its whole lifetime.
func NewSender(cfg SenderConfig, log *logging.Logger) *Sender {
	if cfg.Priority == 0 {
		cfg.Priority = DefaultPriority
	}
	return &Sender{
		cfg:       cfg,
		log:       log.With("component", "sacn-sender"),
		cid:       uuid.New(),
		universes: make(map[dmx.UniverseID]*senderUniverse),
	}
}

// CID returns this source's identifier.
func (s *Sender) CID() uuid.UUID { return s.cid }

// AddUniverse registers a universe for transmission. A zero priority
// selects the sender default; unicast targets replace multicast. A
// non-zero syncAddr makes receivers hold each data frame until the sync
// packet that follows it.
func (s *Sender) AddUniverse(u dmx.UniverseID, priority uint8, syncAddr uint16, unicast []string) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if priority == 0 {
		priority = s.cfg.Priority
	}
	if priority > MaxPriority {
		return fmt.Errorf("%w: %d", ErrPriorityRange, priority)
	}
	if syncAddr != 0 {
		if err := dmx.UniverseID(syncAddr).Validate(); err != nil {
			return fmt.Errorf("sync address: %w", err)
		}
	}

	s.mu.Lock()
	s.universes[u] = &senderUniverse{priority: priority, syncAddr: syncAddr, unicast: unicast}
	s.mu.Unlock()
	return nil
}

// Start binds the outbound socket and applies the multicast TTL.
func (s *Sender) Start() error {
	laddr, err := net.ResolveUDPAddr("udp4", s.cfg.BindAddress+":0")
	if err != nil {
		return fmt.Errorf("resolving bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("binding sender socket: %w", err)
	}
	s.conn = conn
	s.pc = ipv4.NewPacketConn(conn)

	if s.cfg.MulticastTTL > 0 {
		if err := s.pc.SetMulticastTTL(s.cfg.MulticastTTL); err != nil {
			s.log.Warn("setting multicast ttl failed", "ttl", s.cfg.MulticastTTL, "error", err)
		}
	}

	s.log.Info("sacn sender ready",
		"cid", s.cid.String(),
		"source_name", s.cfg.SourceName,
		"priority", s.cfg.Priority)
	return nil
}

// Send transmits one universe's slot data, followed by a sync packet
// when the universe has a sync address.
func (s *Sender) Send(u dmx.UniverseID, data []byte) error {
	s.mu.Lock()
	su, ok := s.universes[u]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("universe %d not registered", u)
	}
	pkt := su.nextData(s.cid, s.cfg.SourceName, u, data, false)
	su.lastData = append(su.lastData[:0], data...)
	targets := su.unicast
	var sync *SyncPacket
	if su.syncAddr != 0 {
		sync = su.nextSync(s.cid)
	}
	s.mu.Unlock()

	wire, err := pkt.Marshal()
	if err != nil {
		return err
	}
	if err := s.transmit(u, wire, targets); err != nil {
		return err
	}
	if sync != nil {
		// The sync packet travels on its own address so one packet can
		// release several universes at once.
		return s.transmit(dmx.UniverseID(sync.SyncAddr), sync.Marshal(), targets)
	}
	return nil
}

// Terminate announces end of stream for a universe by repeating the
// terminated flag, then forgets the universe.
func (s *Sender) Terminate(u dmx.UniverseID) error {
	s.mu.Lock()
	su, ok := s.universes[u]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.universes, u)

	data := su.lastData
	if len(data) == 0 {
		data = []byte{0}
	}
	targets := su.unicast
	s.mu.Unlock()

	for i := 0; i < terminationRepeats; i++ {
		pkt := su.nextData(s.cid, s.cfg.SourceName, u, data, true)
		wire, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if err := s.transmit(u, wire, targets); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.log.Info("sacn stream terminated", "universe", uint16(u))
	return nil
}

// Close terminates every registered universe and releases the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	ids := make([]dmx.UniverseID, 0, len(s.universes))
	for u := range s.universes {
		ids = append(ids, u)
	}
	s.mu.Unlock()

	for _, u := range ids {
		if err := s.Terminate(u); err != nil {
			s.log.Warn("terminating universe failed", "universe", uint16(u), "error", err)
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sender) transmit(u dmx.UniverseID, wire []byte, unicast []string) error {
	if len(unicast) == 0 {
		raddr := &net.UDPAddr{IP: MulticastGroup(u), Port: UDPPort}
		if _, err := s.conn.WriteToUDP(wire, raddr); err != nil {
			return fmt.Errorf("multicast to %s: %w", raddr.IP, err)
		}
		return nil
	}

	for _, target := range unicast {
		raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(target, fmt.Sprint(UDPPort)))
		if err != nil {
			s.log.Warn("bad sacn unicast target", "target", target, "error", err)
			continue
		}
		if _, err := s.conn.WriteToUDP(wire, raddr); err != nil {
			s.log.Warn("sacn unicast transmit failed", "target", target, "error", err)
		}
	}
	return nil
}
