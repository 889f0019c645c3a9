// Package sacn implements the sACN (ANSI E1.31) transport for lumen-core.
//
// sACN carries DMX universes over UDP port 5568, multicast by default,
// with per-source priorities instead of Art-Net's last-write-wins. This
// package provides:
//
//   - The E1.31 wire codec: root layer, framing layer, and DMP layer for
//     data packets, plus the universe synchronization packet.
//   - A receiver that joins the multicast group of every configured
//     universe, validates per-source sequence numbers, and feeds slot
//     data into the universe buffer where priority arbitration lives.
//   - A sender with a stable per-process CID that transmits universe
//     data multicast or unicast and announces stream termination.
//
// # Addressing
//
// Universe u maps to multicast group 239.255.hi.lo where hi and lo are
// the two bytes of u. Universes run 1-63999.
//
// # Source identity
//
// Sources are identified by their CID, a UUID that survives IP changes.
// Priority, liveness, and failover decisions key on it; see the dmx
// package for the arbitration rules.
//
// # References
//
//   - ANSI E1.31-2018 (Streaming ACN)
package sacn
