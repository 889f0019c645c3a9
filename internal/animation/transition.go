package animation

import (
	"time"

	"github.com/openlumen/lumen-core/internal/fixture"
)

// State is a transition's lifecycle phase.
type State int

const (
	// StatePending means the transition is queued but has not taken its
	// first frame yet.
	StatePending State = iota

	// StateActive means frames are being produced.
	StateActive

	// StateCompleted means the target state has been reached.
	StateCompleted

	// StateSuperseded means a newer transition replaced this one before
	// it completed.
	StateSuperseded
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Transition fades a fixture from one state to another over a duration.
// Colour moves through CIELUV; brightness, whites, and the pass-through
// fields move linearly.
type Transition struct {
	from     fixture.Values
	to       fixture.Values
	duration time.Duration

	state State
	start time.Time
}

// NewTransition creates a pending transition.
func NewTransition(from, to fixture.Values, duration time.Duration) *Transition {
	if duration < 0 {
		duration = 0
	}
	return &Transition{from: from, to: to, duration: duration}
}

// State returns the current lifecycle phase.
func (tr *Transition) State() State { return tr.state }

// Target returns the end state.
func (tr *Transition) Target() fixture.Values { return tr.to }

// Supersede marks the transition replaced. Completed transitions keep
// their state.
func (tr *Transition) Supersede() {
	if tr.state != StateCompleted {
		tr.state = StateSuperseded
	}
}

// Step advances the transition to now and returns the frame to render.
// The first call activates a pending transition; a zero-duration
// transition completes on that same call, one tick after creation.
func (tr *Transition) Step(now time.Time) fixture.Values {
	switch tr.state {
	case StateSuperseded:
		return tr.to
	case StateCompleted:
		return tr.to
	case StatePending:
		tr.state = StateActive
		tr.start = now
	}

	p := tr.progress(now)
	if p >= 1 {
		tr.state = StateCompleted
		return tr.to
	}
	return tr.blend(p)
}

func (tr *Transition) progress(now time.Time) float64 {
	if tr.duration == 0 {
		return 1
	}
	elapsed := now.Sub(tr.start)
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(tr.duration)
}

func (tr *Transition) blend(p float64) fixture.Values {
	rgb := LerpLUV(
		RGB{R: tr.from.Red, G: tr.from.Green, B: tr.from.Blue},
		RGB{R: tr.to.Red, G: tr.to.Green, B: tr.to.Blue},
		p,
	)

	v := fixture.Values{
		// Fading to or from off keeps the output alive until the end of
		// the fade.
		On: tr.from.On || tr.to.On,

		Brightness:   lerp(tr.from.Brightness, tr.to.Brightness, p),
		Red:          rgb.R,
		Green:        rgb.G,
		Blue:         rgb.B,
		White:        lerp(tr.from.White, tr.to.White, p),
		HasWhite:     tr.from.HasWhite || tr.to.HasWhite,
		WarmFraction: lerp(tr.from.WarmFraction, tr.to.WarmFraction, p),
		Hue:          lerp(tr.from.Hue, tr.to.Hue, p),
		Saturation:   lerp(tr.from.Saturation, tr.to.Saturation, p),
		ChromaX:      lerp(tr.from.ChromaX, tr.to.ChromaX, p),
		ChromaY:      lerp(tr.from.ChromaY, tr.to.ChromaY, p),
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
