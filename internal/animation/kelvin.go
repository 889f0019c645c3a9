package animation

import "math"

// Colour-temperature limits for the RGB approximation; outside this
// range the fit degrades badly.
const (
	MinKelvin = 1000.0
	MaxKelvin = 40000.0
)

// KelvinToRGB approximates the colour of a black-body radiator at the
// given temperature, using Tanner Helland's curve fit of the Planckian
// locus. Accurate to a few percent between 1000 K and 40000 K.
func KelvinToRGB(kelvin float64) RGB {
	if kelvin < MinKelvin {
		kelvin = MinKelvin
	}
	if kelvin > MaxKelvin {
		kelvin = MaxKelvin
	}
	t := kelvin / 100

	var r, g, b float64

	if t <= 66 {
		r = 255
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}

	if t <= 66 {
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return RGB{
		R: clamp01(r / 255),
		G: clamp01(g / 255),
		B: clamp01(b / 255),
	}
}

// WarmFraction maps a colour temperature onto a fixture's tunable-white
// range: 0 at maxKelvin (coldest), 1 at minKelvin (warmest).
func WarmFraction(kelvin, minKelvin, maxKelvin float64) float64 {
	if maxKelvin <= minKelvin {
		return 0
	}
	return clamp01((maxKelvin - kelvin) / (maxKelvin - minKelvin))
}

// FractionKelvin is the inverse of WarmFraction.
func FractionKelvin(fraction, minKelvin, maxKelvin float64) float64 {
	return maxKelvin - clamp01(fraction)*(maxKelvin-minKelvin)
}
