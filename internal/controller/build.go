package controller

import (
	"fmt"
	"net"
	"strconv"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/fixture"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
)

// Kelvin range assumed for tunable-white devices that don't declare one.
const (
	defaultMinKelvin = 2700
	defaultMaxKelvin = 6500
)

// deviceMeta carries per-device facts the semantic layer needs but the
// fixture codec doesn't: the kelvin range and which command fields the
// layout can express.
type deviceMeta struct {
	minKelvin float64
	maxKelvin float64
	hasColor  bool
	tunable   bool
}

// binding is one universe's resolved transmit configuration.
type binding struct {
	universe dmx.UniverseID

	artnetOK   bool
	artnetAddr dmx.PortAddress
	manual     []string

	partial  bool
	priority uint8
	syncAddr uint16
	unicast  []string
	preview  bool
}

// buildDevices resolves the configured fixtures into the registry and
// their metadata. Fails on the first invalid device so a bad config
// never half-loads.
func buildDevices(cfgs []config.DeviceConfig) (*fixture.Registry, map[string]deviceMeta, error) {
	registry := fixture.NewRegistry()
	meta := make(map[string]deviceMeta, len(cfgs))

	for _, dc := range cfgs {
		entries, err := fixture.ParseChannelSetup([]string(dc.ChannelSetup))
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}
		order, err := fixture.ParseByteOrder(dc.ByteOrder)
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}
		curve, err := fixture.ParseCurve(dc.OutputCorrection)
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}

		dev := &fixture.Device{
			Name:     dc.Name,
			Universe: dmx.UniverseID(dc.Universe),
			Start:    dc.Channel - 1,
			Layout: fixture.Layout{
				Entries:    entries,
				Width:      dc.ChannelWidth(),
				Order:      order,
				Correction: curve,
			},
		}
		if err := registry.Add(dev); err != nil {
			return nil, nil, err
		}

		meta[dc.Name] = metaFor(dc, dev.Layout)
	}
	return registry, meta, nil
}

func metaFor(dc config.DeviceConfig, layout fixture.Layout) deviceMeta {
	m := deviceMeta{
		minKelvin: float64(dc.MinKelvin),
		maxKelvin: float64(dc.MaxKelvin),
		hasColor: layout.HasRole(fixture.RoleRed) || layout.HasRole(fixture.RoleRedRaw) ||
			layout.HasRole(fixture.RoleHue) || layout.HasRole(fixture.RoleChromaX),
		tunable: layout.HasRole(fixture.RoleWarmWhite) || layout.HasRole(fixture.RoleWarmWhiteRaw) ||
			layout.HasRole(fixture.RoleCoolWhite) || layout.HasRole(fixture.RoleCoolWhiteRaw) ||
			layout.HasRole(fixture.RoleTemperature) || layout.HasRole(fixture.RoleTemperatureInv),
	}
	if m.minKelvin <= 0 {
		m.minKelvin = defaultMinKelvin
	}
	if m.maxKelvin <= m.minKelvin {
		m.maxKelvin = defaultMaxKelvin
	}
	return m
}

// buildBindings resolves the configured universes, plus implicit
// bindings for universes only referenced by devices.
func buildBindings(cfg *config.Config, devices *fixture.Registry) (map[dmx.UniverseID]*binding, error) {
	bindings := make(map[dmx.UniverseID]*binding, len(cfg.Universes))

	for _, uc := range cfg.Universes {
		id := dmx.UniverseID(uc.Universe)
		if err := id.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadUniverse, err)
		}

		b := &binding{
			universe: id,
			partial:  uc.SendPartial,
			preview:  uc.EnablePreviewData,
			syncAddr: uint16(uc.SyncAddress),
			unicast:  hostPorts(uc.UnicastAddresses, "5568"),
			manual:   hostPorts(uc.ManualNodes, "6454"),
		}
		if uc.Priority != nil {
			if *uc.Priority < 0 || *uc.Priority > dmx.MaxPriority {
				return nil, fmt.Errorf("%w: universe %d priority %d", ErrBadUniverse, uc.Universe, *uc.Priority)
			}
			b.priority = uint8(*uc.Priority)
		}

		if cfg.ArtNet.Enabled {
			addr, ok, err := artnetAddress(uc.PortAddress, uc.Universe)
			if err != nil {
				return nil, err
			}
			b.artnetAddr, b.artnetOK = addr, ok
		}
		bindings[id] = b
	}

	// Devices may sit in universes with no explicit universe block;
	// those get default bindings.
	for _, dev := range devices.All() {
		if _, ok := bindings[dev.Universe]; ok {
			continue
		}
		if err := dev.Universe.Validate(); err != nil {
			return nil, fmt.Errorf("%w: device %q: %w", ErrBadUniverse, dev.Name, err)
		}
		b := &binding{universe: dev.Universe}
		if cfg.ArtNet.Enabled {
			addr, ok, err := artnetAddress("", int(dev.Universe))
			if err != nil {
				return nil, err
			}
			b.artnetAddr, b.artnetOK = addr, ok
		}
		bindings[dev.Universe] = b
	}

	return bindings, nil
}

// artnetAddress resolves the Art-Net port address for a universe: an
// explicit "net/subnet/universe" triple wins, otherwise the flat number
// maps directly while it fits the 15-bit space.
func artnetAddress(explicit string, universe int) (dmx.PortAddress, bool, error) {
	if explicit != "" {
		addr, err := dmx.ParsePortAddress(explicit)
		if err != nil {
			return dmx.PortAddress{}, false, fmt.Errorf("%w: %w", ErrBadUniverse, err)
		}
		return addr, true, nil
	}
	if universe > 0x7FFF {
		// Outside Art-Net's address space; sACN-only universe.
		return dmx.PortAddress{}, false, nil
	}
	return dmx.PortAddressFromPacked(uint16(universe)), true, nil
}

func hostPorts(hps []config.HostPort, defaultPort string) []string {
	if len(hps) == 0 {
		return nil
	}
	out := make([]string, 0, len(hps))
	for _, hp := range hps {
		port := defaultPort
		if hp.Port > 0 {
			port = strconv.Itoa(hp.Port)
		}
		out = append(out, net.JoinHostPort(hp.Host, port))
	}
	return out
}
