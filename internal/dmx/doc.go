// Package dmx owns the authoritative per-universe slot buffers for
// lumen-core.
//
// A universe is a 512-slot byte array fed by multiple concurrent writers:
// the two protocol receive loops (Art-Net, sACN), the animation frame
// clock, and the refresh scheduler. Each universe carries its own mutex so
// independent universes never contend.
//
// # Merge Policy
//
// Writes are arbitrated per transport:
//
//   - Local and Art-Net writes are last-takes-precedence: the most recent
//     write to a slot range wins unconditionally.
//   - sACN writes are priority-arbitrated: the live source with the
//     numerically highest priority owns the universe; ties break to the
//     most recent writer. A source silent for longer than LivenessWindow
//     is evicted, and ownership falls to the next-highest live source
//     whose last data is then promoted into the canonical buffer.
//
// # Partial Transmission
//
// Every write records the contiguous range of changed slots. TakeDiff
// drains that range so transmit paths can send only the bytes that moved
// when partial-universe output is enabled.
//
// All exported types are safe for concurrent use from multiple goroutines.
package dmx
