package fixture

import (
	"fmt"
	"math"
)

// Curve is an output-correction function applied to a normalized channel
// value just before encoding. Power curves compensate for LED drivers
// whose perceived brightness is far from linear in DMX value.
type Curve uint8

const (
	CurveLinear Curve = iota
	CurveQuadratic
	CurveCubic
	CurveQuadruple
)

// ParseCurve resolves an output_correction config name.
func ParseCurve(name string) (Curve, error) {
	switch name {
	case "", "linear":
		return CurveLinear, nil
	case "quadratic":
		return CurveQuadratic, nil
	case "cubic":
		return CurveCubic, nil
	case "quadruple":
		return CurveQuadruple, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCurve, name)
	}
}

// String returns the config name of the curve.
func (c Curve) String() string {
	switch c {
	case CurveQuadratic:
		return "quadratic"
	case CurveCubic:
		return "cubic"
	case CurveQuadruple:
		return "quadruple"
	default:
		return "linear"
	}
}

// Apply corrects a normalized value in [0,1].
func (c Curve) Apply(v float64) float64 {
	switch c {
	case CurveQuadratic:
		return v * v
	case CurveCubic:
		return v * v * v
	case CurveQuadruple:
		return math.Pow(v, 4)
	default:
		return v
	}
}
