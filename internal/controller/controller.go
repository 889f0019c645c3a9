package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openlumen/lumen-core/internal/animation"
	"github.com/openlumen/lumen-core/internal/artnet"
	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/fixture"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
	"github.com/openlumen/lumen-core/internal/infrastructure/database"
	"github.com/openlumen/lumen-core/internal/infrastructure/influxdb"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
	"github.com/openlumen/lumen-core/internal/infrastructure/mqtt"
	"github.com/openlumen/lumen-core/internal/sacn"
	"github.com/openlumen/lumen-core/internal/scheduler"
	"github.com/openlumen/lumen-core/internal/statestore"
)

const (
	sweepPeriod     = 500 * time.Millisecond
	telemetryPeriod = 10 * time.Second
)

// transmitCounter accumulates per-universe frame counts between
// telemetry samples.
type transmitCounter struct {
	artnet atomic.Int64
	sacn   atomic.Int64
}

// Controller owns every runtime component and the data paths between
// them.
type Controller struct {
	cfg *config.Config
	log *logging.Logger

	buffer   *dmx.Buffer
	devices  *fixture.Registry
	meta     map[string]deviceMeta
	bindings map[dmx.UniverseID]*binding

	engine *animation.Engine
	pump   *scheduler.Pump

	artnet   *artnet.Server
	sacnRecv *sacn.Receiver
	sacnSend *sacn.Sender

	broker  *mqtt.Client
	db      *database.DB
	store   *statestore.Store
	metrics *influxdb.Client

	// inputs coalesces inbound-DMX publishes to the configured rate.
	inputs *coalescer

	mu     sync.Mutex
	values map[string]fixture.Values

	counters map[dmx.UniverseID]*transmitCounter

	now func() time.Time
}

// New resolves the configuration into a controller. No sockets are
// opened and nothing external is touched until Run.
func New(cfg *config.Config, log *logging.Logger) (*Controller, error) {
	devices, meta, err := buildDevices(cfg.Devices)
	if err != nil {
		return nil, err
	}
	bindings, err := buildBindings(cfg, devices)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		log:      log.With("component", "controller"),
		buffer:   dmx.NewBuffer(time.Now),
		devices:  devices,
		meta:     meta,
		bindings: bindings,
		values:   make(map[string]fixture.Values),
		counters: make(map[dmx.UniverseID]*transmitCounter, len(bindings)),
		inputs:   newCoalescer(inputInterval(cfg)),
		now:      time.Now,
	}

	c.engine = animation.NewEngine(cfg.Animation.MaxFPS, c.onFrame, log)
	c.pump = scheduler.NewPump(scheduler.Config{
		MinInterval:  frameInterval(cfg.Animation.MaxFPS),
		RefreshEvery: refreshInterval(cfg),
		Partial:      partialMap(bindings),
	}, c.buffer, c.transmitUniverse, log)

	for id := range bindings {
		c.counters[id] = &transmitCounter{}
	}

	if cfg.ArtNet.Enabled {
		registry := artnet.NewRegistry(time.Now)
		c.artnet = artnet.NewServer(artnet.ServerConfig{
			BindAddress: cfg.ArtNet.BindAddress,
			ShortName:   cfg.ArtNet.ShortName,
			LongName:    cfg.ArtNet.LongName,
			OEM:         artnet.DefaultOEM,
			ESTA:        artnet.DefaultESTA,
			Polling:     cfg.ArtNet.Polling,
			Sequencing:  cfg.ArtNet.Sequencing,
		}, registry, log)
		c.artnet.OnDMX(c.onArtNetDMX)
		c.artnet.OnTrigger(c.onTrigger)
		c.artnet.OnNode(c.onNode)

		for _, b := range bindings {
			if b.artnetOK {
				c.artnet.AddPort(b.artnetAddr, b.manual, b.partial)
			}
		}
	}

	if cfg.SACN.Enabled {
		ids := make([]dmx.UniverseID, 0, len(bindings))
		preview := make(map[dmx.UniverseID]bool)
		for id, b := range bindings {
			ids = append(ids, id)
			if b.preview {
				preview[id] = true
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		c.sacnRecv = sacn.NewReceiver(sacn.ReceiverConfig{
			BindAddress: cfg.SACN.BindAddress,
			Universes:   ids,
			Preview:     preview,
		}, c.buffer, log)
		c.sacnRecv.OnApply(c.onSACNData)

		c.sacnSend = sacn.NewSender(sacn.SenderConfig{
			BindAddress:  cfg.SACN.BindAddress,
			SourceName:   cfg.SACN.SourceName,
			Priority:     uint8(cfg.SACN.Priority),
			MulticastTTL: cfg.SACN.MulticastTTL,
		}, log)
		for id, b := range bindings {
			if err := c.sacnSend.AddUniverse(id, b.priority, b.syncAddr, b.unicast); err != nil {
				return nil, fmt.Errorf("universe %d: %w", uint16(id), err)
			}
		}
	}

	return c, nil
}

// Run starts everything, blocks until the context is cancelled, then
// shuts down in reverse order.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.openStore(ctx); err != nil {
		return err
	}
	if err := c.connectBroker(); err != nil {
		return err
	}
	c.connectMetrics()

	if c.artnet != nil {
		if err := c.artnet.Start(ctx); err != nil {
			return fmt.Errorf("starting art-net: %w", err)
		}
	}
	if c.sacnRecv != nil {
		if err := c.sacnRecv.Start(ctx); err != nil {
			return fmt.Errorf("starting sacn receiver: %w", err)
		}
	}
	if c.sacnSend != nil {
		if err := c.sacnSend.Start(); err != nil {
			return fmt.Errorf("starting sacn sender: %w", err)
		}
	}

	c.publishRestoredStates()

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}
	run(c.engine.Run)
	run(c.pump.Run)
	run(c.inputs.Run)
	run(c.sweepLoop)
	if c.metrics != nil {
		run(c.telemetryLoop)
	}

	c.log.Info("controller running",
		"devices", len(c.meta),
		"universes", len(c.bindings),
		"artnet", c.artnet != nil,
		"sacn", c.sacnRecv != nil,
		"mqtt", c.broker != nil)

	<-ctx.Done()
	wg.Wait()
	c.shutdown()
	return nil
}

// openStore opens the snapshot database, migrates it, and primes the
// buffer and device states from the last persisted snapshot.
func (c *Controller) openStore(ctx context.Context) error {
	if c.cfg.StateStore.Path == "" {
		return nil
	}

	db, err := database.Open(database.Config{
		Path:        c.cfg.StateStore.Path,
		WALMode:     c.cfg.StateStore.WALMode,
		BusyTimeout: c.cfg.StateStore.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening statestore: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrating statestore: %w", err)
	}
	c.db = db
	c.store = statestore.New(db, c.log)

	frames, err := c.store.LoadUniverses(ctx)
	if err != nil {
		return err
	}
	restore := dmx.Source{Transport: dmx.TransportLocal, ID: "restore"}
	for id, slots := range frames {
		if _, ok := c.bindings[id]; !ok {
			// Universe no longer configured; drop the stale snapshot.
			if err := c.store.DeleteUniverse(ctx, id); err != nil {
				c.log.Warn("deleting stale snapshot failed", "universe", uint16(id), "error", err)
			}
			continue
		}
		if _, err := c.buffer.Universe(id).ApplyWrite(restore, 0, slots); err != nil {
			c.log.Warn("restoring universe failed", "universe", uint16(id), "error", err)
		}
	}

	states, err := c.store.LoadDeviceStates(ctx)
	if err != nil {
		return err
	}
	for name, payload := range states {
		meta, ok := c.meta[name]
		if !ok {
			// Device dropped from config; its state goes with it.
			if err := c.store.DeleteDeviceState(ctx, name); err != nil {
				c.log.Warn("deleting stale device state failed", "device", name, "error", err)
			}
			continue
		}
		var st DeviceState
		if err := json.Unmarshal(payload, &st); err != nil {
			c.log.Warn("skipping malformed device state", "device", name, "error", err)
			continue
		}
		c.mu.Lock()
		c.values[name] = valuesFromState(st, meta)
		c.mu.Unlock()
	}

	c.log.Info("statestore restored", "universes", len(frames), "devices", len(states))
	return nil
}

func (c *Controller) connectBroker() error {
	if !c.cfg.MQTT.Enabled {
		return nil
	}
	broker, err := mqtt.Connect(c.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting mqtt: %w", err)
	}
	broker.SetLogger(c.log)
	c.broker = broker

	qos := byte(c.cfg.MQTT.QoS)
	if err := broker.Subscribe(mqtt.Topics{}.AllDeviceCommands(), qos, c.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// connectMetrics attaches InfluxDB telemetry. Failure is not fatal; the
// engine runs without it.
func (c *Controller) connectMetrics() {
	if !c.cfg.InfluxDB.Enabled {
		return
	}
	metrics, err := influxdb.Connect(c.cfg.InfluxDB)
	if err != nil {
		c.log.Warn("influxdb unavailable, telemetry disabled", "error", err)
		return
	}
	metrics.SetOnError(func(err error) {
		c.log.Warn("influxdb write failed", "error", err)
	})
	c.metrics = metrics
}

// publishRestoredStates re-emits retained device states so the external
// surface matches what was restored.
func (c *Controller) publishRestoredStates() {
	c.mu.Lock()
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	c.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		c.publishDeviceState(name, c.currentValues(name))
	}
}

func (c *Controller) shutdown() {
	// Persist the final look before the transports go away.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.persistAll(ctx)

	if c.sacnSend != nil {
		if err := c.sacnSend.Close(); err != nil {
			c.log.Warn("closing sacn sender", "error", err)
		}
	}
	if c.sacnRecv != nil {
		c.sacnRecv.Stop()
	}
	if c.artnet != nil {
		c.artnet.Stop()
	}
	if c.broker != nil {
		if err := c.broker.Close(); err != nil {
			c.log.Warn("closing mqtt", "error", err)
		}
	}
	if c.metrics != nil {
		if err := c.metrics.Close(); err != nil {
			c.log.Warn("closing influxdb", "error", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Warn("closing statestore", "error", err)
		}
	}
	c.log.Info("controller stopped")
}

func (c *Controller) persistAll(ctx context.Context) {
	if c.store == nil {
		return
	}
	for _, id := range c.buffer.IDs() {
		if err := c.store.SaveUniverse(ctx, id, c.buffer.Universe(id).Snapshot()); err != nil {
			c.log.Warn("persisting universe failed", "universe", uint16(id), "error", err)
		}
	}
	c.mu.Lock()
	values := make(map[string]fixture.Values, len(c.values))
	for name, vals := range c.values {
		values[name] = vals
	}
	c.mu.Unlock()
	for name, vals := range values {
		c.persistDeviceState(ctx, name, vals)
	}
}

// ─── Command path ────────────────────────────────────────────────────────────

// handleCommandMessage is the MQTT subscription callback for device
// commands.
func (c *Controller) handleCommandMessage(topic string, payload []byte) error {
	name, ok := mqtt.DeviceFromCommandTopic(topic)
	if !ok {
		return nil
	}
	return c.Apply(name, payload)
}

// Apply parses a command payload and starts the resulting transition.
func (c *Controller) Apply(name string, payload []byte) error {
	if _, ok := c.devices.Get(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	cmd, err := parseCommand(payload)
	if err != nil {
		return err
	}

	from := c.currentValues(name)
	to := resolveCommand(from, cmd, c.meta[name])
	duration := time.Duration(cmd.Transition * float64(time.Second))
	c.engine.Animate(name, from, to, duration)

	c.log.Debug("command accepted",
		"device", name,
		"transition", duration.String())
	return nil
}

// onFrame renders one animation frame into the universe buffer. The
// final frame of a transition also settles: state is published,
// persisted, and recorded.
func (c *Controller) onFrame(device string, vals fixture.Values, final bool) {
	dev, ok := c.devices.Get(device)
	if !ok {
		return
	}
	offset, data, err := dev.Render(vals)
	if err != nil {
		c.log.Error("rendering frame failed", "device", device, "error", err)
		return
	}
	src := dmx.Source{Transport: dmx.TransportLocal, ID: "animation"}
	if _, err := c.buffer.Universe(dev.Universe).ApplyWrite(src, offset, data); err != nil {
		c.log.Error("applying frame failed", "device", device, "error", err)
		return
	}

	c.mu.Lock()
	c.values[device] = vals
	c.mu.Unlock()

	if !final {
		return
	}
	c.publishDeviceState(device, vals)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.persistDeviceState(ctx, device, vals)
	if c.store != nil {
		if err := c.store.SaveUniverse(ctx, dev.Universe, c.buffer.Universe(dev.Universe).Snapshot()); err != nil {
			c.log.Warn("persisting universe failed", "universe", uint16(dev.Universe), "error", err)
		}
	}
	if c.metrics != nil {
		c.metrics.WriteDeviceState(device, vals.On, vals.Brightness)
	}
}

func (c *Controller) currentValues(name string) fixture.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

func (c *Controller) publishDeviceState(name string, vals fixture.Values) {
	st := stateFromValues(vals, c.meta[name], c.now())
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	c.publish(mqtt.Topics{}.DeviceState(name), payload, true)
}

func (c *Controller) persistDeviceState(ctx context.Context, name string, vals fixture.Values) {
	if c.store == nil {
		return
	}
	st := stateFromValues(vals, c.meta[name], c.now())
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.store.SaveDeviceState(ctx, name, payload); err != nil {
		c.log.Warn("persisting device state failed", "device", name, "error", err)
	}
}

// ─── Transmit path ───────────────────────────────────────────────────────────

// transmitUniverse is the pump's transmit function: it fans one
// universe's data out to every enabled transport.
func (c *Controller) transmitUniverse(id dmx.UniverseID, offset int, data []byte) error {
	b := c.bindings[id]
	if b == nil {
		return nil
	}
	ctr := c.counters[id]

	if c.artnet != nil && b.artnetOK {
		// ArtDmx always starts at slot 0; a partial transmit trims the
		// tail instead of offsetting.
		payload := data
		if offset > 0 {
			payload = c.buffer.Universe(id).Snapshot()[:offset+len(data)]
		}
		err := c.artnet.SendDMX(b.artnetAddr, payload)
		switch {
		case errors.Is(err, artnet.ErrNoTargets):
			// No nodes yet; discovery will trigger a push later.
		case err != nil:
			return err
		default:
			ctr.artnet.Add(1)
		}
	}

	if c.sacnSend != nil {
		frame := data
		if offset != 0 || len(frame) != dmx.SlotCount {
			frame = c.buffer.Universe(id).Snapshot()
		}
		if err := c.sacnSend.Send(id, frame); err != nil {
			return err
		}
		ctr.sacn.Add(1)
	}
	return nil
}

// ─── Inbound path ────────────────────────────────────────────────────────────

// onArtNetDMX applies inbound universe data and publishes the decoded
// device levels, coalesced to the configured rate.
func (c *Controller) onArtNetDMX(addr dmx.PortAddress, data []byte, sender string) {
	id := addr.UniverseID()
	u := c.buffer.Universe(id)
	src := dmx.Source{Transport: dmx.TransportArtNet, ID: "artnet/" + sender}
	if _, err := u.ApplyWrite(src, 0, data); err != nil {
		c.log.Warn("applying inbound dmx failed",
			"universe", uint16(id), "sender", sender, "error", err)
		return
	}

	c.inputs.Offer(fmt.Sprintf("universe/%d", uint16(id)), func() {
		c.publishUniverseState(id, "artnet", sender)
	})

	snap := u.Snapshot()
	for _, dev := range c.devices.ByUniverse(id) {
		if dev.Start >= len(data) {
			continue
		}
		c.offerDeviceInput(dev, snap, "artnet")
	}
}

// onSACNData mirrors onArtNetDMX for data the receiver has already
// applied under priority arbitration.
func (c *Controller) onSACNData(id dmx.UniverseID, sourceName string) {
	c.inputs.Offer(fmt.Sprintf("universe/%d", uint16(id)), func() {
		c.publishUniverseState(id, "sacn", sourceName)
	})

	snap := c.buffer.Universe(id).Snapshot()
	for _, dev := range c.devices.ByUniverse(id) {
		c.offerDeviceInput(dev, snap, "sacn")
	}
}

func (c *Controller) offerDeviceInput(dev *fixture.Device, snap []byte, transport string) {
	end := dev.Start + dev.Layout.Footprint()
	channels, err := dev.Layout.Decode(snap[dev.Start:end])
	if err != nil {
		return
	}
	name := dev.Name
	c.inputs.Offer("device/"+name, func() {
		payload, err := json.Marshal(map[string]any{
			"device":    name,
			"channels":  channels,
			"transport": transport,
			"at":        c.now(),
		})
		if err != nil {
			return
		}
		c.publish(mqtt.Topics{}.DeviceInput(name), payload, false)
	})
}

func (c *Controller) publishUniverseState(id dmx.UniverseID, transport, sender string) {
	u := c.buffer.Universe(id)
	payload, err := json.Marshal(map[string]any{
		"universe":  uint16(id),
		"transport": transport,
		"source":    sender,
		"owner":     u.Owner(),
		"sources":   u.SourceCount(),
		"at":        c.now(),
	})
	if err != nil {
		return
	}
	c.publish(mqtt.Topics{}.UniverseState(uint16(id)), payload, false)
}

// onTrigger republishes inbound ArtTrigger events.
func (c *Controller) onTrigger(ev artnet.TriggerEvent) {
	c.log.Info("trigger received",
		"key", ev.Key, "sub_key", ev.SubKey, "origin", ev.Origin)
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.publish(mqtt.Topics{}.TriggerEvent(), payload, false)
}

// onNode publishes node discovery and reconfiguration events.
func (c *Controller) onNode(ip, name string, isNew bool) {
	event := "reconfigured"
	if isNew {
		event = "discovered"
	}
	payload, err := json.Marshal(map[string]any{
		"ip":    ip,
		"name":  name,
		"event": event,
		"at":    c.now(),
	})
	if err != nil {
		return
	}
	c.publish(mqtt.Topics{}.NodeEvent(), payload, false)
}

// sweepLoop evicts expired sACN sources and publishes the fallout.
func (c *Controller) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var evictions []dmx.Eviction
			if c.sacnRecv != nil {
				evictions = c.sacnRecv.Sweep()
			} else {
				evictions = c.buffer.Prune()
			}
			for _, ev := range evictions {
				c.publishSourceEvent(ev)
			}
		}
	}
}

func (c *Controller) publishSourceEvent(ev dmx.Eviction) {
	remaining := c.buffer.Universe(ev.Universe).SourceCount()
	payload, err := json.Marshal(map[string]any{
		"universe":  uint16(ev.Universe),
		"source":    ev.SourceID,
		"priority":  ev.Priority,
		"was_owner": ev.WasOwner,
		"last_seen": ev.LastSeen,
		"remaining": remaining,
	})
	if err == nil {
		c.publish(mqtt.Topics{}.SourceEvent(), payload, false)
	}
	if c.metrics != nil {
		c.metrics.WriteSourceCount(uint16(ev.Universe), remaining)
	}
}

// telemetryLoop flushes accumulated transmit counters.
func (c *Controller) telemetryLoop(ctx context.Context) {
	ticker := time.NewTicker(telemetryPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, ctr := range c.counters {
				if n := ctr.artnet.Swap(0); n > 0 {
					c.metrics.WriteUniverseTransmit(uint16(id), "artnet", n)
				}
				if n := ctr.sacn.Swap(0); n > 0 {
					c.metrics.WriteUniverseTransmit(uint16(id), "sacn", n)
				}
			}
		}
	}
}

func (c *Controller) publish(topic string, payload []byte, retained bool) {
	if c.broker == nil {
		return
	}
	if err := c.broker.Publish(topic, payload, byte(c.cfg.MQTT.QoS), retained); err != nil {
		c.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// ─── Derived settings ────────────────────────────────────────────────────────

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = animation.DefaultFPS
	}
	if fps > animation.MaxFPS {
		fps = animation.MaxFPS
	}
	return time.Second / time.Duration(fps)
}

// refreshInterval picks the keep-alive cadence: the shortest non-zero
// refresh among the enabled transports.
func refreshInterval(cfg *config.Config) time.Duration {
	var refresh time.Duration
	consider := func(d time.Duration) {
		if d > 0 && (refresh == 0 || d < refresh) {
			refresh = d
		}
	}
	if cfg.ArtNet.Enabled {
		consider(cfg.GetArtNetRefresh())
	}
	if cfg.SACN.Enabled {
		consider(cfg.GetSACNRefresh())
	}
	return refresh
}

// inputInterval derives the inbound publish window from the configured
// per-second rate; the higher enabled rate wins.
func inputInterval(cfg *config.Config) time.Duration {
	var rate float64
	if cfg.ArtNet.Enabled && cfg.ArtNet.RateLimit > rate {
		rate = cfg.ArtNet.RateLimit
	}
	if cfg.SACN.Enabled && cfg.SACN.RateLimit > rate {
		rate = cfg.SACN.RateLimit
	}
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

func partialMap(bindings map[dmx.UniverseID]*binding) map[dmx.UniverseID]bool {
	partial := make(map[dmx.UniverseID]bool)
	for id, b := range bindings {
		if b.partial {
			partial[id] = true
		}
	}
	return partial
}
