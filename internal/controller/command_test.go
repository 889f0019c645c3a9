package controller

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/openlumen/lumen-core/internal/fixture"
)

func f64(v float64) *float64 { return &v }

func boolp(v bool) *bool { return &v }

// ─── Parsing ─────────────────────────────────────────────────────────────────

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"full command", `{"on":true,"brightness":0.8,"color":{"r":1,"g":0.5,"b":0},"transition":1.5}`, false},
		{"kelvin only", `{"kelvin":3000}`, false},
		{"empty object", `{}`, false},
		{"not json", `on`, true},
		{"brightness above one", `{"brightness":1.2}`, true},
		{"negative white", `{"white":-0.1}`, true},
		{"color component range", `{"color":{"r":2,"g":0,"b":0}}`, true},
		{"kelvin below range", `{"kelvin":500}`, true},
		{"kelvin above range", `{"kelvin":50000}`, true},
		{"hue range", `{"hue":1.5}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCommand([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrBadCommand) {
					t.Errorf("parseCommand() error = %v, want ErrBadCommand", err)
				}
				return
			}
			if err != nil {
				t.Errorf("parseCommand() error = %v", err)
			}
		})
	}
}

func TestParseCommandClampsNegativeTransition(t *testing.T) {
	cmd, err := parseCommand([]byte(`{"on":true,"transition":-2}`))
	if err != nil {
		t.Fatalf("parseCommand() error = %v", err)
	}
	if cmd.Transition != 0 {
		t.Errorf("Transition = %v, want clamped to 0", cmd.Transition)
	}
}

// ─── Resolution ──────────────────────────────────────────────────────────────

func TestResolveCommand(t *testing.T) {
	meta := deviceMeta{minKelvin: 2700, maxKelvin: 6500, hasColor: true}

	tests := []struct {
		name  string
		from  fixture.Values
		cmd   Command
		check func(t *testing.T, to fixture.Values)
	}{
		{
			"on from dark defaults to full brightness",
			fixture.Values{},
			Command{On: boolp(true)},
			func(t *testing.T, to fixture.Values) {
				if !to.On || to.Brightness != 1 {
					t.Errorf("to = on %v brightness %v, want on at full", to.On, to.Brightness)
				}
			},
		},
		{
			"on keeps remembered brightness",
			fixture.Values{Brightness: 0.4},
			Command{On: boolp(true)},
			func(t *testing.T, to fixture.Values) {
				if to.Brightness != 0.4 {
					t.Errorf("brightness = %v, want remembered 0.4", to.Brightness)
				}
			},
		},
		{
			"brightness implies power state",
			fixture.Values{On: false},
			Command{Brightness: f64(0.6)},
			func(t *testing.T, to fixture.Values) {
				if !to.On || to.Brightness != 0.6 {
					t.Errorf("to = on %v brightness %v, want on at 0.6", to.On, to.Brightness)
				}
			},
		},
		{
			"zero brightness turns off",
			fixture.Values{On: true, Brightness: 1},
			Command{Brightness: f64(0)},
			func(t *testing.T, to fixture.Values) {
				if to.On {
					t.Error("to.On = true, want off at zero brightness")
				}
			},
		},
		{
			"explicit on overrides brightness implication",
			fixture.Values{},
			Command{On: boolp(false), Brightness: f64(0.5)},
			func(t *testing.T, to fixture.Values) {
				if to.On {
					t.Error("to.On = true, want explicit off to win")
				}
			},
		},
		{
			"white sets explicit channel",
			fixture.Values{},
			Command{White: f64(0.7)},
			func(t *testing.T, to fixture.Values) {
				if !to.HasWhite || to.White != 0.7 {
					t.Errorf("white = %v hasWhite %v, want explicit 0.7", to.White, to.HasWhite)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, resolveCommand(tt.from, tt.cmd, meta))
		})
	}
}

func TestResolveCommandKelvin(t *testing.T) {
	meta := deviceMeta{minKelvin: 2700, maxKelvin: 6500, hasColor: true, tunable: true}

	to := resolveCommand(fixture.Values{}, Command{Kelvin: f64(2700)}, meta)
	if to.WarmFraction != 1 {
		t.Errorf("WarmFraction at min kelvin = %v, want 1", to.WarmFraction)
	}
	if to.Red != 1 {
		t.Errorf("Red = %v, want warm white fully red", to.Red)
	}
	if to.Blue > 0.5 {
		t.Errorf("Blue = %v, want low blue at 2700K", to.Blue)
	}

	to = resolveCommand(fixture.Values{}, Command{Kelvin: f64(6500)}, meta)
	if to.WarmFraction != 0 {
		t.Errorf("WarmFraction at max kelvin = %v, want 0", to.WarmFraction)
	}

	// An explicit colour in the same command wins over the kelvin
	// approximation.
	to = resolveCommand(fixture.Values{}, Command{
		Kelvin: f64(2700),
		Color:  &ColorRGB{R: 0, G: 0, B: 1},
	}, meta)
	if to.Blue != 1 || to.Red != 0 {
		t.Errorf("color = (%v,%v,%v), want explicit blue", to.Red, to.Green, to.Blue)
	}
	if to.WarmFraction != 1 {
		t.Errorf("WarmFraction = %v, want kelvin still applied", to.WarmFraction)
	}
}

// ─── State projection ────────────────────────────────────────────────────────

func TestStateRoundTrip(t *testing.T) {
	meta := deviceMeta{minKelvin: 2700, maxKelvin: 6500, hasColor: true, tunable: true}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	vals := fixture.Values{
		On:           true,
		Brightness:   0.8,
		Red:          1,
		Green:        0.5,
		White:        0.3,
		HasWhite:     true,
		WarmFraction: 0.25,
	}

	st := stateFromValues(vals, meta, at)
	if !st.On || st.Brightness != 0.8 || st.Color.R != 1 {
		t.Errorf("state = %+v, want projected values", st)
	}
	if st.White == nil || *st.White != 0.3 {
		t.Errorf("state.White = %v, want 0.3", st.White)
	}
	wantKelvin := 6500 - 0.25*(6500-2700)
	if math.Abs(st.Kelvin-wantKelvin) > 1e-9 {
		t.Errorf("state.Kelvin = %v, want %v", st.Kelvin, wantKelvin)
	}

	back := valuesFromState(st, meta)
	if back.On != vals.On || back.Brightness != vals.Brightness ||
		back.Red != vals.Red || back.Green != vals.Green {
		t.Errorf("round trip = %+v, want original values", back)
	}
	if !back.HasWhite || back.White != 0.3 {
		t.Errorf("round trip white = %v, want 0.3", back.White)
	}
	if math.Abs(back.WarmFraction-0.25) > 1e-9 {
		t.Errorf("round trip WarmFraction = %v, want 0.25", back.WarmFraction)
	}
}

func TestStateOmitsWhiteWithoutExplicitChannel(t *testing.T) {
	st := stateFromValues(fixture.Values{On: true}, deviceMeta{}, time.Time{})
	if st.White != nil {
		t.Errorf("state.White = %v, want nil without explicit white", *st.White)
	}
	if st.Kelvin != 0 {
		t.Errorf("state.Kelvin = %v, want 0 for non-tunable device", st.Kelvin)
	}
}
