package dmx

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotCount is the fixed number of data slots in a DMX universe.
const SlotCount = 512

// E1.31 universe number bounds. Art-Net port addresses pack into 15 bits
// and may legally be zero (0/0/0), so these limits are enforced only for
// sACN-facing configuration.
const (
	MinUniverse = 1
	MaxUniverse = 63999
)

// UniverseID is the flat universe number used as the buffer key for both
// transports. sACN carries it on the wire directly; Art-Net addresses
// map onto it via PortAddress.Packed.
type UniverseID uint16

// Validate checks that the ID lies within [MinUniverse, MaxUniverse].
func (id UniverseID) Validate() error {
	if id < MinUniverse || id > MaxUniverse {
		return fmt.Errorf("%w: %d", ErrUniverseRange, id)
	}
	return nil
}

// PortAddress is the Art-Net 3-tuple addressing scheme: a 7-bit net,
// 4-bit sub-net, and 4-bit universe, packed into 15 bits on the wire.
type PortAddress struct {
	Net      uint8 // 0-127
	SubNet   uint8 // 0-15
	Universe uint8 // 0-15
}

// ParsePortAddress parses the "net/subnet/universe" string form used in
// configuration files, e.g. "0/0/1".
func ParsePortAddress(s string) (PortAddress, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return PortAddress{}, fmt.Errorf("%w: %q (want net/subnet/universe)", ErrInvalidPortAddress, s)
	}

	fields := make([]uint8, 3)
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return PortAddress{}, fmt.Errorf("%w: %q: %v", ErrInvalidPortAddress, s, err)
		}
		fields[i] = uint8(v)
	}

	addr := PortAddress{Net: fields[0], SubNet: fields[1], Universe: fields[2]}
	if err := addr.Validate(); err != nil {
		return PortAddress{}, fmt.Errorf("%w: %q", ErrInvalidPortAddress, s)
	}
	return addr, nil
}

// PortAddressFromPacked unpacks the 15-bit wire form
// (net<<8 | subnet<<4 | universe).
func PortAddressFromPacked(v uint16) PortAddress {
	return PortAddress{
		Net:      uint8(v >> 8 & 0x7F),
		SubNet:   uint8(v >> 4 & 0x0F),
		Universe: uint8(v & 0x0F),
	}
}

// Validate checks each field against its wire-format bit width.
func (a PortAddress) Validate() error {
	if a.Net > 127 {
		return fmt.Errorf("%w: net %d exceeds 127", ErrInvalidPortAddress, a.Net)
	}
	if a.SubNet > 15 {
		return fmt.Errorf("%w: sub-net %d exceeds 15", ErrInvalidPortAddress, a.SubNet)
	}
	if a.Universe > 15 {
		return fmt.Errorf("%w: universe %d exceeds 15", ErrInvalidPortAddress, a.Universe)
	}
	return nil
}

// Packed returns the 15-bit wire form (net<<8 | subnet<<4 | universe).
func (a PortAddress) Packed() uint16 {
	return uint16(a.Net&0x7F)<<8 | uint16(a.SubNet&0x0F)<<4 | uint16(a.Universe&0x0F)
}

// UniverseID returns the flat buffer key for this port address.
func (a PortAddress) UniverseID() UniverseID {
	return UniverseID(a.Packed())
}

// String returns the "net/subnet/universe" form.
func (a PortAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Net, a.SubNet, a.Universe)
}
