package artnet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// inputActiveWindow is how long after the last inbound ArtDmx a port
// keeps reporting input activity in GoodInput.
const inputActiveWindow = 4 * time.Second

// defaultPollInterval spaces the discovery ArtPoll broadcasts. A little
// jitter is added per tick to avoid lockstep with other controllers.
const defaultPollInterval = 2750 * time.Millisecond

// inboundQueueSize bounds the datagram queue between the socket reader
// and the dispatcher. The protocol is lossy UDP, so drop-oldest under
// load is acceptable.
const inboundQueueSize = 64

// DefaultOEM is the registered OEM code announced in ArtPollReply when
// the configuration does not set one.
const DefaultOEM uint16 = 0x2BE9

// DefaultESTA is the announced ESTA manufacturer code; 0x7FF0 is in the
// experimental range.
const DefaultESTA uint16 = 0x7FF0

// ServerConfig carries the immutable Art-Net server settings.
type ServerConfig struct {
	BindAddress string
	ShortName   string
	LongName    string
	OEM         uint16
	ESTA        uint16

	// Polling enables the controller-side discovery loop.
	Polling bool

	// Sequencing enables outbound ArtDmx sequence numbers (1-255 wrap).
	Sequencing bool

	// PollInterval overrides the discovery cadence; zero selects the
	// default of ~2.75 s.
	PollInterval time.Duration
}

// TriggerEvent is the structured record emitted for an inbound
// ArtTrigger, passed through to the external event sink.
type TriggerEvent struct {
	OEM     uint16    `json:"oem"`
	Key     uint8     `json:"key"`
	SubKey  uint8     `json:"sub_key"`
	Payload string    `json:"payload"`
	At      time.Time `json:"at"`
	Origin  string    `json:"origin"`
}

// DMXHandler receives decoded inbound ArtDmx data.
type DMXHandler func(addr dmx.PortAddress, data []byte, sender string)

// TriggerHandler receives inbound trigger events.
type TriggerHandler func(ev TriggerEvent)

// NodeHandler receives discovery notifications: isNew marks a node seen
// for the first time, otherwise its port addresses changed.
type NodeHandler func(ip string, name string, isNew bool)

// ownPort is one universe this controller services.
type ownPort struct {
	addr    dmx.PortAddress
	manual  []string // static unicast targets, "host:port"
	partial bool

	transmitting bool
	inputActive  bool
	lastInput    time.Time
	lastData     []byte
}

// Server is the Art-Net protocol endpoint: one UDP socket, a reader and
// a dispatcher goroutine, and the optional discovery poll loop.
type Server struct {
	cfg      ServerConfig
	log      *logging.Logger
	registry *Registry
	now      func() time.Time

	conn    *net.UDPConn
	localIP [4]byte

	mu    sync.Mutex
	ports map[uint16]*ownPort
	seq   uint8

	onDMX     DMXHandler
	onTrigger TriggerHandler
	onNode    NodeHandler

	startedAt time.Time
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	received atomic.Uint64
	dropped  atomic.Uint64
	sent     atomic.Uint64
}

type datagram struct {
	data   []byte
	remote *net.UDPAddr
}

// NewServer creates an Art-Net server. The registry and logger are
// required; handlers are optional and set before Start.
func NewServer(cfg ServerConfig, registry *Registry, log *logging.Logger) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.OEM == 0 {
		cfg.OEM = DefaultOEM
	}
	if cfg.ESTA == 0 {
		cfg.ESTA = DefaultESTA
	}
	return &Server{
		cfg:      cfg,
		log:      log.With("component", "artnet"),
		registry: registry,
		now:      time.Now,
		ports:    make(map[uint16]*ownPort),
		seq:      0,
		done:     make(chan struct{}),
	}
}

// OnDMX sets the inbound DMX handler. Must be called before Start.
func (s *Server) OnDMX(h DMXHandler) { s.onDMX = h }

// OnTrigger sets the trigger event handler. Must be called before Start.
func (s *Server) OnTrigger(h TriggerHandler) { s.onTrigger = h }

// OnNode sets the discovery notification handler. Must be called before
// Start.
func (s *Server) OnNode(h NodeHandler) { s.onNode = h }

// AddPort registers a universe this controller services, with optional
// manual unicast targets used alongside discovered nodes.
func (s *Server) AddPort(addr dmx.PortAddress, manualTargets []string, sendPartial bool) {
	s.mu.Lock()
	s.ports[addr.Packed()] = &ownPort{
		addr:    addr,
		manual:  manualTargets,
		partial: sendPartial,
	}
	running := s.conn != nil
	s.mu.Unlock()

	if running {
		// Local port configuration changed: push unsolicited replies.
		s.notifySubscribers()
	}
}

// Start binds the UDP socket and launches the reader, dispatcher, and
// poll loops. It returns once the socket is listening.
func (s *Server) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", s.cfg.BindAddress, UDPPort))
	if err != nil {
		return fmt.Errorf("resolving bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", laddr, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.startedAt = s.now()
	s.mu.Unlock()

	if ip := localIPv4(); ip != nil {
		copy(s.localIP[:], ip)
	}

	queue := make(chan datagram, inboundQueueSize)

	s.wg.Add(2)
	go s.readLoop(queue)
	go s.dispatchLoop(queue)

	if s.cfg.Polling {
		s.wg.Add(1)
		go s.pollLoop()
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log.Info("art-net server listening",
		"bind", laddr.String(),
		"polling", s.cfg.Polling,
		"short_name", s.cfg.ShortName)
	return nil
}

// Stop closes the socket and waits for the loops to exit. Safe to call
// more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		s.log.Info("art-net server stopped",
			"received", s.received.Load(),
			"dropped", s.dropped.Load(),
			"sent", s.sent.Load())
	})
}

// readLoop performs blocking reads and pushes datagrams onto the bounded
// queue, dropping the oldest entry when full.
func (s *Server) readLoop(queue chan datagram) {
	defer s.wg.Done()
	defer close(queue)

	buf := make([]byte, 2048)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.log.Warn("art-net read failed", "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case queue <- datagram{data: data, remote: remote}:
		default:
			s.dropped.Add(1)
			select {
			case <-queue:
			default:
			}
			select {
			case queue <- datagram{data: data, remote: remote}:
			default:
			}
		}
	}
}

func (s *Server) dispatchLoop(queue <-chan datagram) {
	defer s.wg.Done()
	for d := range queue {
		s.handleDatagram(d.data, d.remote)
	}
}

// handleDatagram routes one inbound packet. Malformed packets are
// dropped at debug level and never crash the loop.
func (s *Server) handleDatagram(data []byte, remote *net.UDPAddr) {
	s.received.Add(1)

	op, err := PeekOpCode(data)
	if err != nil {
		s.dropped.Add(1)
		s.log.Debug("dropping malformed datagram", "remote", remote.String(), "error", err)
		return
	}

	switch op {
	case OpPoll:
		poll, err := ParsePoll(data)
		if err != nil {
			s.dropMalformed(remote, err)
			return
		}
		s.handlePoll(remote, poll)

	case OpPollReply:
		reply, err := ParsePollReply(data)
		if err != nil {
			s.dropMalformed(remote, err)
			return
		}
		s.handlePollReply(remote, reply)

	case OpDmx:
		pkt, err := ParseDmx(data)
		if err != nil {
			s.dropMalformed(remote, err)
			return
		}
		s.handleDMX(remote, pkt)

	case OpTrigger:
		pkt, err := ParseTrigger(data)
		if err != nil {
			s.dropMalformed(remote, err)
			return
		}
		s.handleTrigger(remote, pkt)

	case OpSync:
		// Accepted, intentionally not acted upon.
		s.log.Debug("ignoring art-sync", "remote", remote.String())

	default:
		s.dropped.Add(1)
		s.log.Debug("ignoring unsupported opcode", "opcode", op.String(), "remote", remote.String())
	}
}

func (s *Server) dropMalformed(remote *net.UDPAddr, err error) {
	s.dropped.Add(1)
	s.log.Debug("dropping malformed packet", "remote", remote.String(), "error", err)
}

// handlePoll answers discovery requests. Untargeted polls always get a
// reply; targeted polls only when the requested range overlaps our
// serviced universes.
func (s *Server) handlePoll(remote *net.UDPAddr, poll *PollPacket) {
	if s.isOwnAddress(remote) {
		return
	}

	if poll.TargetedMode && !s.servicesRange(poll.TargetBottom, poll.TargetTop) {
		s.log.Debug("ignoring targeted art-poll, no universe overlap",
			"remote", remote.IP.String(),
			"bottom", poll.TargetBottom.String(),
			"top", poll.TargetTop.String())
		return
	}

	if poll.NotifyOnChange {
		s.registry.Subscribe(remote.IP.String(), poll)
	} else {
		// A repeat poll without the notify flag still proves the peer
		// is alive.
		s.registry.Touch(remote.IP.String())
	}

	s.sendPollReply(remote.IP.String())
}

// handlePollReply folds a node announcement into the registry. A node
// that newly appears on a universe we are already driving gets the
// current data immediately instead of waiting for the next refresh.
func (s *Server) handlePollReply(remote *net.UDPAddr, reply *PollReplyPacket) {
	if s.isOwnAddress(remote) {
		return
	}

	ip := remote.IP.String()
	if reply.IP != ([4]byte{}) {
		ip = net.IP(reply.IP[:]).String()
	}

	isNew, changed := s.registry.UpdateNode(ip, reply)
	if isNew {
		s.log.Info("discovered art-net node",
			"ip", ip,
			"bind_index", reply.BindIndex,
			"name", reply.ShortName,
			"addresses", len(reply.OutputAddresses()))
	}
	if (isNew || changed) && s.onNode != nil {
		s.onNode(ip, reply.ShortName, isNew)
	}

	if (isNew || changed) && s.uptime() > 3*time.Second {
		for _, addr := range reply.OutputAddresses() {
			s.mu.Lock()
			port, ok := s.ports[addr.Packed()]
			var data []byte
			if ok && port.lastData != nil {
				data = append([]byte(nil), port.lastData...)
			}
			s.mu.Unlock()
			if data != nil {
				s.transmit(addr, data, []string{net.JoinHostPort(ip, fmt.Sprint(UDPPort))})
			}
		}
	}
}

// handleDMX decodes inbound universe data and hands it to the consumer.
func (s *Server) handleDMX(remote *net.UDPAddr, pkt *DmxPacket) {
	packed := pkt.Address.Packed()

	s.mu.Lock()
	port, ok := s.ports[packed]
	var activityChanged bool
	if ok {
		if !port.inputActive {
			port.inputActive = true
			activityChanged = true
		}
		port.lastInput = s.now()
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug("ignoring art-dmx for unserviced port address",
			"address", pkt.Address.String(), "remote", remote.IP.String())
		return
	}

	if activityChanged {
		// Inbound-activity flag change: push unsolicited replies.
		s.notifySubscribers()
	}

	if s.onDMX != nil {
		s.onDMX(pkt.Address, pkt.Data, remote.IP.String())
	}
}

// handleTrigger passes the event through; nothing is stored.
func (s *Server) handleTrigger(remote *net.UDPAddr, pkt *TriggerPacket) {
	if s.onTrigger == nil {
		return
	}
	s.onTrigger(TriggerEvent{
		OEM:     pkt.OEM,
		Key:     pkt.Key,
		SubKey:  pkt.SubKey,
		Payload: pkt.PayloadString(),
		At:      s.now(),
		Origin:  "artnet/" + remote.IP.String(),
	})
}

// SendDMX transmits universe data to every discovered and manual node
// for the port address. Transmit failures are logged and left for the
// next refresh tick; a total absence of targets returns ErrNoTargets.
func (s *Server) SendDMX(addr dmx.PortAddress, data []byte) error {
	packed := addr.Packed()

	s.mu.Lock()
	port, ok := s.ports[packed]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s not serviced", ErrNoTargets, addr)
	}
	manual := port.manual
	s.mu.Unlock()

	targets := make([]string, 0, 4)
	for _, ip := range s.registry.NodesFor(addr) {
		targets = append(targets, net.JoinHostPort(ip, fmt.Sprint(UDPPort)))
	}
	targets = append(targets, manual...)

	if len(targets) == 0 {
		s.setTransmitting(packed, false)
		return fmt.Errorf("%w: %s", ErrNoTargets, addr)
	}

	if err := s.transmit(addr, data, targets); err != nil {
		return err
	}

	s.mu.Lock()
	port.lastData = append(port.lastData[:0], data...)
	s.mu.Unlock()
	s.setTransmitting(packed, true)
	return nil
}

// transmit marshals and unicasts one ArtDmx packet to each target.
func (s *Server) transmit(addr dmx.PortAddress, data []byte, targets []string) error {
	conn := s.socket()
	if conn == nil {
		return ErrServerClosed
	}

	pkt := &DmxPacket{
		Sequence: s.nextSequence(),
		Address:  addr,
		Data:     data,
	}
	wire, err := pkt.Marshal()
	if err != nil {
		return err
	}

	for _, target := range targets {
		raddr, err := net.ResolveUDPAddr("udp4", target)
		if err != nil {
			s.log.Warn("bad art-dmx target", "target", target, "error", err)
			continue
		}
		if _, err := conn.WriteToUDP(wire, raddr); err != nil {
			s.log.Warn("art-dmx transmit failed", "target", target, "error", err)
			continue
		}
		s.sent.Add(1)
	}
	return nil
}

// SendTrigger broadcasts an ArtTrigger.
func (s *Server) SendTrigger(oem uint16, key, subKey uint8, payload string) error {
	pkt := &TriggerPacket{OEM: oem, Key: key, SubKey: subKey, Payload: append([]byte(payload), 0)}
	wire, err := pkt.Marshal()
	if err != nil {
		return err
	}
	return s.broadcast(wire)
}

// nextSequence advances the outbound ArtDmx sequence, wrapping 255 to 1.
// Returns 0 when sequencing is disabled.
func (s *Server) nextSequence() uint8 {
	if !s.cfg.Sequencing {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.seq == 0 {
		s.seq = 1
	}
	return s.seq
}

// pollLoop broadcasts targeted ArtPoll packets on a jittered cadence and
// runs the periodic registry prune sweep.
func (s *Server) pollLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.jitteredInterval())
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		s.sendPoll()
		s.sweep()
		timer.Reset(s.jitteredInterval())
	}
}

func (s *Server) jitteredInterval() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return s.cfg.PollInterval - 250*time.Millisecond + jitter
}

// sendPoll broadcasts discovery targeted at our serviced range.
func (s *Server) sendPoll() {
	bottom, top, ok := s.portBounds()
	if !ok {
		return
	}

	poll := &PollPacket{
		TargetedMode:   true,
		TargetBottom:   bottom,
		TargetTop:      top,
		NotifyOnChange: true,
	}
	if err := s.broadcast(poll.Marshal()); err != nil {
		s.log.Warn("art-poll broadcast failed", "error", err)
	}
}

// sweep prunes stale registry entries and ages out input-activity flags.
func (s *Server) sweep() {
	nodes, subs := s.registry.Prune()
	for _, n := range nodes {
		addrs := make([]string, 0, len(n.Addresses))
		for _, a := range n.Addresses {
			addrs = append(addrs, a.String())
		}
		s.log.Warn("evicting stale art-net node",
			"ip", n.IP, "bind_index", n.BindIndex, "addresses", addrs)
	}
	for _, ip := range subs {
		s.log.Info("evicting stale subscriber", "ip", ip)
	}

	cutoff := s.now().Add(-inputActiveWindow)
	var changed bool
	s.mu.Lock()
	for _, port := range s.ports {
		if port.inputActive && port.lastInput.Before(cutoff) {
			port.inputActive = false
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notifySubscribers()
	}
}

// sendPollReply announces our serviced ports to one peer, chunked four
// ports per reply as the protocol requires.
func (s *Server) sendPollReply(toIP string) {
	conn := s.socket()
	if conn == nil {
		return
	}
	groups := s.groupedPorts()
	if len(groups) == 0 {
		return
	}

	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(toIP, fmt.Sprint(UDPPort)))
	if err != nil {
		s.log.Warn("bad poll-reply target", "target", toIP, "error", err)
		return
	}

	bindIndex := uint8(0)
	if len(groups) > 1 {
		bindIndex = 1
	}

	for _, g := range groups {
		reply := &PollReplyPacket{
			IP:          s.localIP,
			Port:        UDPPort,
			Net:         g.net,
			SubNet:      g.subNet,
			OEM:         s.cfg.OEM,
			ESTA:        s.cfg.ESTA,
			ShortName:   s.cfg.ShortName,
			LongName:    s.cfg.LongName,
			NodeReport:  fmt.Sprintf("#0001 [%d] %d ports", s.registry.NodeCount(), len(g.ports)),
			NumPorts:    uint16(len(g.ports)),
			AcnPriority: 100,
			Style:       StyleController,
			BindIndex:   bindIndex,
		}
		for i, p := range g.ports {
			reply.PortTypes[i] = PortCanOutput | PortCanInput
			reply.SwIn[i] = p.addr.Universe
			reply.SwOut[i] = p.addr.Universe
			if p.inputActive {
				reply.GoodInput[i] = InputDataReceived
			}
			if p.transmitting {
				reply.GoodOutput[i] = OutputDataTransmitted
			}
		}

		if _, err := conn.WriteToUDP(reply.Marshal(), raddr); err != nil {
			s.log.Warn("poll-reply transmit failed", "target", toIP, "error", err)
			return
		}
		s.sent.Add(1)
		if bindIndex != 0 {
			bindIndex++
		}
	}
}

// notifySubscribers pushes unsolicited ArtPollReply packets to every
// change subscriber.
func (s *Server) notifySubscribers() {
	for _, ip := range s.registry.Subscribers() {
		s.sendPollReply(ip)
	}
}

type portGroup struct {
	net    uint8
	subNet uint8
	ports  []*ownPort
}

// groupedPorts chunks serviced ports by net/sub-net, at most four per
// group, matching the ArtPollReply port array size.
func (s *Server) groupedPorts() []portGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	byNetSub := make(map[[2]uint8][]*ownPort)
	for _, p := range s.ports {
		key := [2]uint8{p.addr.Net, p.addr.SubNet}
		byNetSub[key] = append(byNetSub[key], p)
	}

	var groups []portGroup
	for key, ports := range byNetSub {
		for len(ports) > 4 {
			groups = append(groups, portGroup{net: key[0], subNet: key[1], ports: ports[:4]})
			ports = ports[4:]
		}
		groups = append(groups, portGroup{net: key[0], subNet: key[1], ports: ports})
	}
	return groups
}

// portBounds returns the lowest and highest serviced port addresses.
func (s *Server) portBounds() (bottom, top dmx.PortAddress, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ports) == 0 {
		return bottom, top, false
	}
	var lo, hi uint16
	first := true
	for packed := range s.ports {
		if first || packed < lo {
			lo = packed
		}
		if first || packed > hi {
			hi = packed
		}
		first = false
	}
	return dmx.PortAddressFromPacked(lo), dmx.PortAddressFromPacked(hi), true
}

// servicesRange reports whether [bottom, top] overlaps our serviced
// universes.
func (s *Server) servicesRange(bottom, top dmx.PortAddress) bool {
	lo, hi, ok := s.portBounds()
	if !ok {
		return false
	}
	return bottom.Packed() <= hi.Packed() && top.Packed() >= lo.Packed()
}

func (s *Server) setTransmitting(packed uint16, transmitting bool) {
	s.mu.Lock()
	port, ok := s.ports[packed]
	changed := ok && port.transmitting != transmitting
	if changed {
		port.transmitting = transmitting
	}
	s.mu.Unlock()

	if changed {
		// Port transmit-status change: push unsolicited replies.
		s.notifySubscribers()
	}
}

func (s *Server) broadcast(wire []byte) error {
	conn := s.socket()
	if conn == nil {
		return ErrServerClosed
	}
	raddr := &net.UDPAddr{IP: net.IPv4bcast, Port: UDPPort}
	if _, err := conn.WriteToUDP(wire, raddr); err != nil {
		return fmt.Errorf("broadcasting: %w", err)
	}
	s.sent.Add(1)
	return nil
}

func (s *Server) socket() *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Server) isOwnAddress(remote *net.UDPAddr) bool {
	var ip [4]byte
	if v4 := remote.IP.To4(); v4 != nil {
		copy(ip[:], v4)
	}
	return ip == s.localIP && s.localIP != ([4]byte{})
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.startedAt)
}

// localIPv4 picks the first non-loopback IPv4 address of this host for
// the ArtPollReply IP field.
func localIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
