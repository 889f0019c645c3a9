package artnet

import "errors"

var (
	// ErrShortPacket indicates a datagram too small to carry the packet
	// it claims to be.
	ErrShortPacket = errors.New("artnet: packet too short")

	// ErrBadHeader indicates a datagram without the "Art-Net\0"
	// signature.
	ErrBadHeader = errors.New("artnet: invalid packet header")

	// ErrBadOpCode indicates an opcode this server does not implement.
	ErrBadOpCode = errors.New("artnet: unsupported opcode")

	// ErrDataLength indicates an ArtDmx slot count outside 1-512.
	ErrDataLength = errors.New("artnet: dmx data length out of range")

	// ErrPayloadTooLarge indicates an ArtTrigger payload above 512 bytes.
	ErrPayloadTooLarge = errors.New("artnet: trigger payload too large")

	// ErrNoTargets indicates a transmit with no discovered or manual
	// nodes for the universe.
	ErrNoTargets = errors.New("artnet: no nodes for port address")

	// ErrServerClosed indicates an operation on a stopped server.
	ErrServerClosed = errors.New("artnet: server closed")
)
