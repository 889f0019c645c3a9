package animation

import (
	"context"
	"sync"
	"time"

	"github.com/openlumen/lumen-core/internal/fixture"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// DefaultFPS is the frame rate used when the configuration leaves it
// unset. 43 fps is the upper bound a full 512-slot DMX universe can
// physically refresh at.
const (
	DefaultFPS = 25
	MaxFPS     = 43
)

// FrameFunc receives one rendered frame per device per tick. The final
// flag marks the last frame of a transition so the caller can persist
// the settled state.
type FrameFunc func(device string, vals fixture.Values, final bool)

// Engine drives every active transition at a fixed frame rate. One
// ticker serves all devices; per-device transitions are superseded when
// a newer one arrives.
type Engine struct {
	log      *logging.Logger
	now      func() time.Time
	interval time.Duration
	onFrame  FrameFunc

	mu     sync.Mutex
	active map[string]*Transition
}

// NewEngine creates an engine at the given frame rate, clamped to
// [1, 43].
func NewEngine(fps int, onFrame FrameFunc, log *logging.Logger) *Engine {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if fps > MaxFPS {
		fps = MaxFPS
	}
	return &Engine{
		log:      log.With("component", "animation"),
		now:      time.Now,
		interval: time.Second / time.Duration(fps),
		onFrame:  onFrame,
		active:   make(map[string]*Transition),
	}
}

// Animate queues a transition for a device, superseding any in flight.
func (e *Engine) Animate(device string, from, to fixture.Values, duration time.Duration) {
	tr := NewTransition(from, to, duration)

	e.mu.Lock()
	if old, ok := e.active[device]; ok {
		old.Supersede()
		e.log.Debug("superseding transition", "device", device, "state", old.State().String())
	}
	e.active[device] = tr
	e.mu.Unlock()
}

// Cancel drops a device's transition without emitting further frames.
func (e *Engine) Cancel(device string) {
	e.mu.Lock()
	if tr, ok := e.active[device]; ok {
		tr.Supersede()
		delete(e.active, device)
	}
	e.mu.Unlock()
}

// ActiveCount returns how many transitions are in flight.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Tick advances every transition one frame and emits the results.
// Completed transitions emit their final frame and are removed.
func (e *Engine) Tick() {
	now := e.now()

	type frame struct {
		device string
		vals   fixture.Values
		final  bool
	}

	e.mu.Lock()
	frames := make([]frame, 0, len(e.active))
	for device, tr := range e.active {
		vals := tr.Step(now)
		done := tr.State() == StateCompleted
		frames = append(frames, frame{device: device, vals: vals, final: done})
		if done {
			delete(e.active, device)
		}
	}
	e.mu.Unlock()

	if e.onFrame == nil {
		return
	}
	for _, f := range frames {
		e.onFrame(f.device, f.vals, f.final)
	}
}

// Run ticks the engine until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("animation engine running", "interval", e.interval.String())
	for {
		select {
		case <-ctx.Done():
			e.log.Info("animation engine stopped")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}
