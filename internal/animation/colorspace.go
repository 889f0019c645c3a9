package animation

import "math"

// RGB is an sRGB colour with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// LUV is a CIELUV colour: L* in [0, 100], u* and v* roughly [-134, 220].
type LUV struct {
	L, U, V float64
}

// D65 reference white in XYZ.
const (
	refX = 0.95047
	refY = 1.00000
	refZ = 1.08883
)

// CIE constants for the L* piecewise function.
const (
	cieEpsilon = 0.008856
	cieKappa   = 903.3
)

var (
	refU = 4 * refX / (refX + 15*refY + 3*refZ)
	refV = 9 * refY / (refX + 15*refY + 3*refZ)
)

// RGBToLUV converts an sRGB colour to CIELUV.
func RGBToLUV(c RGB) LUV {
	r := srgbToLinear(c.R)
	g := srgbToLinear(c.G)
	b := srgbToLinear(c.B)

	x := 0.4124564*r + 0.3575761*g + 0.1804375*b
	y := 0.2126729*r + 0.7151522*g + 0.0721750*b
	z := 0.0193339*r + 0.1191920*g + 0.9503041*b

	yr := y / refY
	var l float64
	if yr > cieEpsilon {
		l = 116*math.Cbrt(yr) - 16
	} else {
		l = cieKappa * yr
	}

	denom := x + 15*y + 3*z
	if denom == 0 {
		return LUV{L: l}
	}
	uPrime := 4 * x / denom
	vPrime := 9 * y / denom
	return LUV{
		L: l,
		U: 13 * l * (uPrime - refU),
		V: 13 * l * (vPrime - refV),
	}
}

// LUVToRGB converts a CIELUV colour back to sRGB, clamping components
// that fall outside the gamut.
func LUVToRGB(c LUV) RGB {
	if c.L <= 0 {
		return RGB{}
	}

	uPrime := c.U/(13*c.L) + refU
	vPrime := c.V/(13*c.L) + refV

	var y float64
	if c.L > cieKappa*cieEpsilon {
		t := (c.L + 16) / 116
		y = refY * t * t * t
	} else {
		y = refY * c.L / cieKappa
	}

	if vPrime == 0 {
		return RGB{}
	}
	x := y * 9 * uPrime / (4 * vPrime)
	z := y * (12 - 3*uPrime - 20*vPrime) / (4 * vPrime)

	r := 3.2404542*x - 1.5371385*y - 0.4985314*z
	g := -0.9692660*x + 1.8760108*y + 0.0415560*z
	b := 0.0556434*x - 0.2040259*y + 1.0572252*z

	return RGB{
		R: clamp01(linearToSRGB(r)),
		G: clamp01(linearToSRGB(g)),
		B: clamp01(linearToSRGB(b)),
	}
}

// LerpLUV interpolates between two colours in CIELUV space.
func LerpLUV(from, to RGB, t float64) RGB {
	a := RGBToLUV(from)
	b := RGBToLUV(to)
	return LUVToRGB(LUV{
		L: a.L + (b.L-a.L)*t,
		U: a.U + (b.U-a.U)*t,
		V: a.V + (b.V-a.V)*t,
	})
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func linearToSRGB(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
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
