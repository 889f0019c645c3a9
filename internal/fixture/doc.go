// Package fixture implements the channel codec: the mapping between
// semantic device values (brightness, RGB, white mix, colour temperature)
// and raw DMX slot bytes under a configurable channel layout.
//
// A layout is an ordered list of role tokens and literal constants. Each
// entry occupies the device's channel width (1 to 4 bytes) in the
// device's byte order. Scaled roles (lower-case tokens) multiply by the
// device's overall brightness before encoding; unscaled roles (upper-case
// tokens) bypass it. An RGB layout carrying a white role without an
// explicit white input derives it from min(R, G, B).
//
// Role tokens and byte widths are validated when a device is resolved at
// load time. The per-frame encode path never fails on layout errors.
//
// Encoding is pure and stateless; Device and Registry add placement
// within a universe and load-time validation on top of it.
package fixture
