package sacn

import "errors"

var (
	// ErrShortPacket indicates a datagram too small for the layer it
	// claims to carry.
	ErrShortPacket = errors.New("sacn: packet too short")

	// ErrBadPacket indicates a datagram without the ACN root-layer
	// preamble and packet identifier.
	ErrBadPacket = errors.New("sacn: not an E1.31 packet")

	// ErrBadVector indicates an unsupported root, framing, or DMP
	// vector.
	ErrBadVector = errors.New("sacn: unsupported vector")

	// ErrSequenceGap indicates a data packet rejected by the per-source
	// sequence window.
	ErrSequenceGap = errors.New("sacn: out-of-order sequence")

	// ErrPriorityRange indicates a priority above 200.
	ErrPriorityRange = errors.New("sacn: priority out of range")

	// ErrDataLength indicates a slot count outside 1-512.
	ErrDataLength = errors.New("sacn: dmx data length out of range")

	// ErrNameTooLong indicates a source name above 63 bytes.
	ErrNameTooLong = errors.New("sacn: source name too long")
)
