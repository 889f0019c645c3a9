package fixture

import (
	"fmt"
	"strconv"
)

// Entry is one position in a channel layout: either a semantic role or a
// literal constant.
type Entry struct {
	Role  Role
	Const uint8 // meaningful only when Role == RoleConstant
}

// Layout is a device's resolved channel map: an ordered list of entries,
// each occupying Width bytes in Order, with an output-correction curve
// applied to every non-constant value at encode time.
type Layout struct {
	Entries    []Entry
	Width      int
	Order      ByteOrder
	Correction Curve
}

// ParseChannelSetup resolves the tokens of a channel_setup into layout
// entries. A token is either a role name (see ParseRole) or a decimal
// literal 0-255. The compact string form ("rgbw") arrives here as one
// token per rune.
//
// Fails at load time on the first unresolvable token, so the per-frame
// encode path never sees an invalid layout.
func ParseChannelSetup(tokens []string) ([]Entry, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyLayout
	}

	entries := make([]Entry, 0, len(tokens))
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("%w: %d", ErrConstantRange, n)
			}
			entries = append(entries, Entry{Role: RoleConstant, Const: uint8(n)})
			continue
		}
		role, err := ParseRole(tok)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Role: role})
	}
	return entries, nil
}

// SplitSetupString expands the compact channel_setup form ("rgbch") into
// one token per rune for ParseChannelSetup.
func SplitSetupString(s string) []string {
	tokens := make([]string, 0, len(s))
	for _, r := range s {
		tokens = append(tokens, string(r))
	}
	return tokens
}

// Validate checks the layout's entries, width, and total footprint.
func (l Layout) Validate() error {
	if len(l.Entries) == 0 {
		return ErrEmptyLayout
	}
	return ValidateWidth(l.Width)
}

// Footprint returns the number of universe slots the layout occupies.
func (l Layout) Footprint() int {
	return len(l.Entries) * l.Width
}

// HasRole reports whether any entry carries the given role.
func (l Layout) HasRole(role Role) bool {
	for _, e := range l.Entries {
		if e.Role == role {
			return true
		}
	}
	return false
}

// Values is the semantic state of a device presented to the codec. All
// components are normalized to [0,1].
type Values struct {
	// On gates every colour and white channel; a device that is off
	// encodes zeros for them regardless of the stored colour.
	On bool

	// Brightness is the overall dimmer level, applied to scaled roles.
	Brightness float64

	// Red, Green, Blue form the colour triplet.
	Red, Green, Blue float64

	// White is the explicit white level. When HasWhite is false and the
	// layout contains a white role, White is derived from min(R, G, B)
	// and subtracted from the colour components.
	White    float64
	HasWhite bool

	// WarmFraction is the colour-temperature position, 0 = fully cold,
	// 1 = fully warm. Drives cool/warm-white mixing and the temperature
	// roles.
	WarmFraction float64

	// Hue, Saturation and the chromaticity pair pass through to their
	// roles unscaled.
	Hue, Saturation  float64
	ChromaX, ChromaY float64
}

// Encode renders the semantic values into the layout's raw DMX bytes:
// one channel per entry, each Width bytes in Order, correction applied
// to every non-constant channel.
func (l Layout) Encode(vals Values) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	r, g, b := vals.Red, vals.Green, vals.Blue
	w := vals.White
	if !vals.HasWhite && (l.HasRole(RoleWhite) || l.HasRole(RoleWhiteRaw)) {
		w = minComponent(r, g, b)
		r, g, b = r-w, g-w, b-w
	}

	// Colour channels normalize against the brightest component so the
	// hue survives dimming; full scale stays reachable.
	maxColor := maxComponent(r, g, b, w)
	if maxColor <= 0 {
		maxColor = 1
	}

	warm := clamp01(vals.WarmFraction)
	cold := 1 - warm
	maxFraction := warm
	if cold > maxFraction {
		maxFraction = cold
	}
	if maxFraction <= 0 {
		maxFraction = 1
	}

	on := 0.0
	if vals.On {
		on = 1
	}

	out := make([]byte, 0, l.Footprint())
	for _, e := range l.Entries {
		var v float64
		switch e.Role {
		case RoleConstant:
			v = float64(e.Const) / 255
		case RoleDimmer:
			v = vals.Brightness
		case RoleRed:
			v = on * r / maxColor * vals.Brightness
		case RoleRedRaw:
			v = on * r / maxColor
		case RoleGreen:
			v = on * g / maxColor * vals.Brightness
		case RoleGreenRaw:
			v = on * g / maxColor
		case RoleBlue:
			v = on * b / maxColor * vals.Brightness
		case RoleBlueRaw:
			v = on * b / maxColor
		case RoleWhite:
			v = on * w / maxColor * vals.Brightness
		case RoleWhiteRaw:
			v = on * w / maxColor
		case RoleCoolWhite:
			v = on * cold / maxFraction * vals.Brightness
		case RoleCoolWhiteRaw:
			v = on * cold / maxFraction
		case RoleWarmWhite:
			v = on * warm / maxFraction * vals.Brightness
		case RoleWarmWhiteRaw:
			v = on * warm / maxFraction
		case RoleTemperature:
			v = cold
		case RoleTemperatureInv:
			v = warm
		case RoleHue:
			v = vals.Hue
		case RoleSaturation:
			v = vals.Saturation
		case RoleChromaX:
			v = vals.ChromaX
		case RoleChromaY:
			v = vals.ChromaY
		}

		if e.Role != RoleConstant {
			v = l.Correction.Apply(clamp01(v))
		}

		chunk, err := EncodeValue(v, l.Width, l.Order)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", e.Role, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Decode normalizes a raw slot block back into per-entry channel values
// in layout order. It inverts the byte packing, not the brightness or
// correction coupling.
func (l Layout) Decode(data []byte) ([]float64, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(data) != l.Footprint() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), l.Footprint())
	}

	out := make([]float64, len(l.Entries))
	for i := range l.Entries {
		v, err := DecodeValue(data[i*l.Width:(i+1)*l.Width], l.Order)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minComponent(vs ...float64) float64 {
	min := vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func maxComponent(vs ...float64) float64 {
	max := vs[0]
	for _, v := range vs[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
