package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/openlumen/lumen-core/internal/dmx"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// DefaultMinInterval spaces transmits at 2 per second per universe.
const DefaultMinInterval = 500 * time.Millisecond

// TransmitFunc sends one universe's data. A full transmit carries the
// whole snapshot at offset 0; a partial one carries only the dirty
// range.
type TransmitFunc func(u dmx.UniverseID, offset int, data []byte) error

// Config carries the pump's pacing settings.
type Config struct {
	// MinInterval is the per-universe floor between transmits. Zero
	// disables rate limiting.
	MinInterval time.Duration

	// RefreshEvery retransmits a universe's full snapshot after this
	// much transmit silence. Zero disables refreshing.
	RefreshEvery time.Duration

	// Partial lists universes that may transmit dirty ranges instead of
	// full snapshots.
	Partial map[dmx.UniverseID]bool
}

type universeState struct {
	lastTransmit time.Time
}

// Pump drains dirty universes from the buffer into a transmit function,
// applying the rate limit and keep-alive refresh.
type Pump struct {
	cfg      Config
	log      *logging.Logger
	buffer   *dmx.Buffer
	transmit TransmitFunc
	now      func() time.Time

	mu    sync.Mutex
	state map[dmx.UniverseID]*universeState
}

// NewPump creates a pump over the buffer. The transmit function is
// called from the pump's goroutine only.
func NewPump(cfg Config, buffer *dmx.Buffer, transmit TransmitFunc, log *logging.Logger) *Pump {
	return &Pump{
		cfg:      cfg,
		log:      log.With("component", "scheduler"),
		buffer:   buffer,
		transmit: transmit,
		now:      time.Now,
		state:    make(map[dmx.UniverseID]*universeState),
	}
}

// Tick processes every universe once: flush dirty data unless the rate
// limit defers it, otherwise refresh if the universe has gone quiet.
func (p *Pump) Tick() {
	now := p.now()

	for _, id := range p.buffer.IDs() {
		u := p.buffer.Universe(id)
		st := p.stateFor(id)

		if p.cfg.MinInterval > 0 && now.Sub(st.lastTransmit) < p.cfg.MinInterval {
			// Deferred: the buffer keeps coalescing writes until the
			// window opens.
			continue
		}

		offset, data, dirty := u.TakeDiff()
		switch {
		case dirty:
			if !p.cfg.Partial[id] {
				offset, data = 0, u.Snapshot()
			}
			p.send(id, offset, data, st, now)

		case p.cfg.RefreshEvery > 0 && !st.lastTransmit.IsZero() &&
			now.Sub(st.lastTransmit) >= p.cfg.RefreshEvery:
			p.send(id, 0, u.Snapshot(), st, now)
		}
	}
}

func (p *Pump) send(id dmx.UniverseID, offset int, data []byte, st *universeState, now time.Time) {
	if err := p.transmit(id, offset, data); err != nil {
		p.log.Warn("universe transmit failed", "universe", uint16(id), "error", err)
	}
	// Failures still advance the window; the refresh loop retries.
	st.lastTransmit = now
}

func (p *Pump) stateFor(id dmx.UniverseID) *universeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.state[id]
	if !ok {
		st = &universeState{}
		p.state[id] = st
	}
	return st
}

// Run ticks the pump until the context is cancelled. The tick period is
// a quarter of the rate-limit window, bounded to stay responsive
// without spinning.
func (p *Pump) Run(ctx context.Context) {
	period := p.cfg.MinInterval / 4
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}
	if period > 250*time.Millisecond {
		period = 250 * time.Millisecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	p.log.Info("transmit pump running",
		"period", period.String(),
		"min_interval", p.cfg.MinInterval.String(),
		"refresh_every", p.cfg.RefreshEvery.String())

	for {
		select {
		case <-ctx.Done():
			p.log.Info("transmit pump stopped")
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}
