package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openlumen/lumen-core/internal/animation"
	"github.com/openlumen/lumen-core/internal/fixture"
)

// ColorRGB is the JSON colour triplet, components in [0,1].
type ColorRGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Command is the device command payload accepted on
// lumen/command/device/<name>. Absent fields leave the corresponding
// state untouched.
type Command struct {
	On         *bool     `json:"on,omitempty"`
	Brightness *float64  `json:"brightness,omitempty"`
	Color      *ColorRGB `json:"color,omitempty"`
	White      *float64  `json:"white,omitempty"`
	Kelvin     *float64  `json:"kelvin,omitempty"`
	Hue        *float64  `json:"hue,omitempty"`
	Saturation *float64  `json:"saturation,omitempty"`

	// Transition is the fade time in seconds. Zero applies on the next
	// frame.
	Transition float64 `json:"transition,omitempty"`
}

// DeviceState is the settled state published retained on
// lumen/state/device/<name> and persisted to the statestore.
type DeviceState struct {
	On         bool      `json:"on"`
	Brightness float64   `json:"brightness"`
	Color      ColorRGB  `json:"color"`
	White      *float64  `json:"white,omitempty"`
	Kelvin     float64   `json:"kelvin,omitempty"`
	At         time.Time `json:"at"`
}

// parseCommand decodes and validates a command payload.
func parseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrBadCommand, err)
	}

	checkUnit := func(name string, v *float64) error {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrBadCommand, name, *v)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"brightness", cmd.Brightness},
		{"white", cmd.White},
		{"hue", cmd.Hue},
		{"saturation", cmd.Saturation},
	} {
		if err := checkUnit(f.name, f.v); err != nil {
			return Command{}, err
		}
	}
	if cmd.Color != nil {
		for _, v := range []float64{cmd.Color.R, cmd.Color.G, cmd.Color.B} {
			if v < 0 || v > 1 {
				return Command{}, fmt.Errorf("%w: color component %v outside [0,1]", ErrBadCommand, v)
			}
		}
	}
	if cmd.Kelvin != nil && (*cmd.Kelvin < animation.MinKelvin || *cmd.Kelvin > animation.MaxKelvin) {
		return Command{}, fmt.Errorf("%w: kelvin %v outside [%v,%v]",
			ErrBadCommand, *cmd.Kelvin, animation.MinKelvin, animation.MaxKelvin)
	}
	if cmd.Transition < 0 {
		cmd.Transition = 0
	}
	return cmd, nil
}

// resolveCommand folds a command into the device's current values to
// produce the transition target.
func resolveCommand(from fixture.Values, cmd Command, meta deviceMeta) fixture.Values {
	to := from

	if cmd.On != nil {
		to.On = *cmd.On
		if to.On && to.Brightness == 0 && cmd.Brightness == nil {
			to.Brightness = 1
		}
	}
	if cmd.Brightness != nil {
		to.Brightness = *cmd.Brightness
		if cmd.On == nil {
			to.On = to.Brightness > 0
		}
	}
	if cmd.Color != nil {
		to.Red, to.Green, to.Blue = cmd.Color.R, cmd.Color.G, cmd.Color.B
	}
	if cmd.White != nil {
		to.White = *cmd.White
		to.HasWhite = true
	}
	if cmd.Kelvin != nil {
		k := *cmd.Kelvin
		to.WarmFraction = animation.WarmFraction(k, meta.minKelvin, meta.maxKelvin)
		if meta.hasColor && cmd.Color == nil {
			rgb := animation.KelvinToRGB(k)
			to.Red, to.Green, to.Blue = rgb.R, rgb.G, rgb.B
		}
	}
	if cmd.Hue != nil {
		to.Hue = *cmd.Hue
	}
	if cmd.Saturation != nil {
		to.Saturation = *cmd.Saturation
	}
	return to
}

// stateFromValues projects the semantic values into the published form.
func stateFromValues(vals fixture.Values, meta deviceMeta, at time.Time) DeviceState {
	st := DeviceState{
		On:         vals.On,
		Brightness: vals.Brightness,
		Color:      ColorRGB{R: vals.Red, G: vals.Green, B: vals.Blue},
		At:         at,
	}
	if vals.HasWhite {
		w := vals.White
		st.White = &w
	}
	if meta.tunable {
		st.Kelvin = animation.FractionKelvin(vals.WarmFraction, meta.minKelvin, meta.maxKelvin)
	}
	return st
}

// valuesFromState is the inverse projection, used when restoring
// persisted states at startup.
func valuesFromState(st DeviceState, meta deviceMeta) fixture.Values {
	vals := fixture.Values{
		On:         st.On,
		Brightness: st.Brightness,
		Red:        st.Color.R,
		Green:      st.Color.G,
		Blue:       st.Color.B,
	}
	if st.White != nil {
		vals.White = *st.White
		vals.HasWhite = true
	}
	if meta.tunable && st.Kelvin > 0 {
		vals.WarmFraction = animation.WarmFraction(st.Kelvin, meta.minKelvin, meta.maxKelvin)
	}
	return vals
}
