package fixture

import "fmt"

// Role is the semantic meaning of one channel within a layout.
//
// Scaled roles multiply by the device's overall brightness before
// encoding; their Raw counterparts bypass it. The set is closed: every
// configurable token resolves to exactly one of these variants at load
// time.
type Role uint8

const (
	// RoleConstant is a literal byte value written verbatim (scaled to
	// the channel width) on every frame.
	RoleConstant Role = iota

	// RoleDimmer carries the device's overall brightness.
	RoleDimmer

	RoleRed
	RoleRedRaw
	RoleGreen
	RoleGreenRaw
	RoleBlue
	RoleBlueRaw

	// RoleWhite is a white channel. When the device has no explicit
	// white input it is auto-derived from min(R, G, B).
	RoleWhite
	RoleWhiteRaw

	RoleCoolWhite
	RoleCoolWhiteRaw
	RoleWarmWhite
	RoleWarmWhiteRaw

	// RoleTemperature encodes the colour-temperature position with full
	// scale meaning cold; RoleTemperatureInv inverts the direction.
	RoleTemperature
	RoleTemperatureInv

	RoleHue
	RoleSaturation
	RoleChromaX
	RoleChromaY
)

// roleTokens maps channel-setup tokens to roles. Single-letter tokens
// follow the established channel_setup convention (lower case scaled,
// upper case unscaled); long names are accepted for list-form setups.
var roleTokens = map[string]Role{
	"d": RoleDimmer,
	"r": RoleRed,
	"R": RoleRedRaw,
	"g": RoleGreen,
	"G": RoleGreenRaw,
	"b": RoleBlue,
	"B": RoleBlueRaw,
	"w": RoleWhite,
	"W": RoleWhiteRaw,
	"c": RoleCoolWhite,
	"C": RoleCoolWhiteRaw,
	"h": RoleWarmWhite,
	"H": RoleWarmWhiteRaw,
	"t": RoleTemperature,
	"T": RoleTemperatureInv,
	"u": RoleHue,
	"s": RoleSaturation,
	"x": RoleChromaX,
	"y": RoleChromaY,

	"dimmer":          RoleDimmer,
	"red":             RoleRed,
	"green":           RoleGreen,
	"blue":            RoleBlue,
	"white":           RoleWhite,
	"cool_white":      RoleCoolWhite,
	"warm_white":      RoleWarmWhite,
	"temperature":     RoleTemperature,
	"temperature_inv": RoleTemperatureInv,
	"hue":             RoleHue,
	"saturation":      RoleSaturation,
	"chroma_x":        RoleChromaX,
	"chroma_y":        RoleChromaY,
}

// ParseRole resolves a channel-setup token to its role.
func ParseRole(token string) (Role, error) {
	r, ok := roleTokens[token]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, token)
	}
	return r, nil
}

// String returns the long role name.
func (r Role) String() string {
	switch r {
	case RoleConstant:
		return "constant"
	case RoleDimmer:
		return "dimmer"
	case RoleRed:
		return "red"
	case RoleRedRaw:
		return "red_raw"
	case RoleGreen:
		return "green"
	case RoleGreenRaw:
		return "green_raw"
	case RoleBlue:
		return "blue"
	case RoleBlueRaw:
		return "blue_raw"
	case RoleWhite:
		return "white"
	case RoleWhiteRaw:
		return "white_raw"
	case RoleCoolWhite:
		return "cool_white"
	case RoleCoolWhiteRaw:
		return "cool_white_raw"
	case RoleWarmWhite:
		return "warm_white"
	case RoleWarmWhiteRaw:
		return "warm_white_raw"
	case RoleTemperature:
		return "temperature"
	case RoleTemperatureInv:
		return "temperature_inv"
	case RoleHue:
		return "hue"
	case RoleSaturation:
		return "saturation"
	case RoleChromaX:
		return "chroma_x"
	case RoleChromaY:
		return "chroma_y"
	default:
		return "unknown"
	}
}

// Scaled reports whether the role multiplies by the device brightness.
func (r Role) Scaled() bool {
	switch r {
	case RoleRed, RoleGreen, RoleBlue, RoleWhite, RoleCoolWhite, RoleWarmWhite:
		return true
	default:
		return false
	}
}

// ColorComponent reports whether the role carries part of an RGB triplet,
// which selects CIELUV interpolation during transitions.
func (r Role) ColorComponent() bool {
	switch r {
	case RoleRed, RoleRedRaw, RoleGreen, RoleGreenRaw, RoleBlue, RoleBlueRaw:
		return true
	default:
		return false
	}
}
