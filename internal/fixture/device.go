package fixture

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openlumen/lumen-core/internal/dmx"
)

// Device is one resolved fixture instance: a layout placed at a start
// offset within a universe. Devices are immutable after registration;
// the universe buffer references their slots only through offset and
// footprint.
type Device struct {
	Name     string
	Universe dmx.UniverseID
	Start    int // 0-based slot offset
	Layout   Layout
}

// Validate checks the device's placement and layout at load time.
func (d *Device) Validate() error {
	if err := d.Layout.Validate(); err != nil {
		return fmt.Errorf("device %q: %w", d.Name, err)
	}
	if d.Start < 0 || d.Start+d.Layout.Footprint() > dmx.SlotCount {
		return fmt.Errorf("%w: device %q slots %d-%d", ErrDeviceRange,
			d.Name, d.Start+1, d.Start+d.Layout.Footprint())
	}
	return nil
}

// Render encodes the semantic values and returns them with the device's
// slot offset, ready for Universe.ApplyWrite.
func (d *Device) Render(vals Values) (int, []byte, error) {
	data, err := d.Layout.Encode(vals)
	if err != nil {
		return 0, nil, fmt.Errorf("device %q: %w", d.Name, err)
	}
	return d.Start, data, nil
}

// Registry is the immutable-after-load catalogue of resolved devices,
// keyed by unique name.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Add validates and registers a device. Duplicate names fail fast.
func (r *Registry) Add(d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDevice, d.Name)
	}
	r.devices[d.Name] = d
	return nil
}

// Get returns the device registered under name.
func (r *Registry) Get(name string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

// All returns every device, sorted by name for stable iteration.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByUniverse returns the devices placed in one universe, sorted by name.
func (r *Registry) ByUniverse(id dmx.UniverseID) []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Device
	for _, d := range r.devices {
		if d.Universe == id {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
