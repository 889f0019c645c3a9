package dmx

import "errors"

var (
	// ErrInvalidPortAddress indicates an Art-Net port address outside the
	// 7/4/4-bit net/sub-net/universe ranges, or an unparseable string form.
	ErrInvalidPortAddress = errors.New("dmx: invalid port address")

	// ErrUniverseRange indicates a universe ID outside [1, 63999].
	ErrUniverseRange = errors.New("dmx: universe id out of range")

	// ErrSlotRange indicates a write whose offset plus length exceeds the
	// 512-slot universe, or a negative offset.
	ErrSlotRange = errors.New("dmx: slot range out of bounds")

	// ErrEmptyWrite indicates a write carrying no slot data.
	ErrEmptyWrite = errors.New("dmx: empty slot data")

	// ErrPriorityRange indicates an sACN priority outside [0, 200].
	ErrPriorityRange = errors.New("dmx: priority out of range")
)
