// Package animation provides timed transitions between fixture states.
//
// Colour fades interpolate in CIELUV rather than raw RGB. CIELUV is
// close to perceptually uniform, so a fade between two saturated
// colours passes through intermediate hues at steady perceived
// brightness instead of sagging through dark muddy midpoints the way a
// naive per-channel RGB lerp does.
//
// The package has three layers:
//
//   - colorspace.go: sRGB ↔ CIELUV conversions via XYZ with the D65
//     white point.
//   - kelvin.go: colour-temperature helpers for tunable-white fixtures.
//   - transition.go and engine.go: the transition state machine and the
//     frame engine that drives every active transition at a fixed rate.
//
// Transitions move through pending → active → completed, or to
// superseded when a newer transition replaces them mid-flight. A
// zero-duration transition still waits for the next frame tick before
// resolving, so callers observe a uniform lifecycle.
package animation
