package dmx

import "time"

// Transport identifies which arbitration policy governs a write.
type Transport uint8

const (
	// TransportLocal marks controller-originated writes (animation ticks,
	// restored snapshots). Last-takes-precedence.
	TransportLocal Transport = iota

	// TransportArtNet marks writes decoded from inbound ArtDmx packets.
	// Last-takes-precedence.
	TransportArtNet

	// TransportSACN marks writes decoded from inbound E1.31 data packets.
	// Priority-arbitrated with liveness eviction.
	TransportSACN
)

// String returns the lower-case transport name used in logs and events.
func (t Transport) String() string {
	switch t {
	case TransportLocal:
		return "local"
	case TransportArtNet:
		return "artnet"
	case TransportSACN:
		return "sacn"
	default:
		return "unknown"
	}
}

// Source identifies one writer competing for a universe.
type Source struct {
	Transport Transport

	// ID is the stable identity used for arbitration bookkeeping. For
	// sACN this is the sender CID string so the same source keeps its
	// ownership across address changes; for Art-Net it is the remote
	// UDP address.
	ID string

	// Priority is the declared sACN priority, 0-200. Ignored for other
	// transports.
	Priority uint8
}

// sourceState is the per-universe arbitration record for one sACN source.
// The slot snapshot holds the source's latest full data so a failover can
// promote it into the canonical buffer.
type sourceState struct {
	priority  uint8
	lastWrite time.Time
	slots     [SlotCount]byte
}

// Eviction reports one sACN source removed by a liveness sweep.
type Eviction struct {
	Universe UniverseID
	SourceID string
	Priority uint8
	LastSeen time.Time

	// WasOwner is true when the evicted source held the universe and
	// ownership fell to another source or back to local control.
	WasOwner bool
}
