// Package artnet implements the Art-Net 4 transport for lumen-core.
//
// This package provides the wire codec and protocol state machine for
// Art-Net over UDP port 6454: node discovery via ArtPoll/ArtPollReply,
// DMX distribution via ArtDmx, and show-control events via ArtTrigger.
//
// # Architecture
//
//	┌─────────────────┐           ┌─────────────────┐
//	│   Lumen Core    │  buffer   │  Art-Net Server │   UDP 6454
//	│   (controller)  │◄─────────►│   (this pkg)    │◄──────────► DMX nodes
//	└─────────────────┘           └─────────────────┘
//
// # Key Responsibilities
//
//   - Serve ArtPoll requests, honouring targeted-mode universe overlap
//   - Poll the network every ~2.5-3 s to discover output nodes
//   - Track discovered nodes and change subscribers, pruning after 10 s
//   - Push unsolicited ArtPollReply on port or status changes
//   - Decode inbound ArtDmx into the universe buffer
//   - Transmit universe snapshots to discovered and manual nodes
//   - Forward ArtTrigger packets as structured events
//
// ArtSync packets are accepted on the wire and deliberately ignored.
//
// # Addressing
//
// Art-Net addresses universes as a net/sub-net/universe triple packed
// into 15 bits; see the dmx package's PortAddress.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
//
// # References
//
//   - Art-Net 4 specification: https://art-net.org.uk
package artnet
