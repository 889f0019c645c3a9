package fixture

import (
	"fmt"
	"math"
)

// ByteOrder selects how multi-byte channel values split across slots.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// ParseByteOrder resolves a byte_order config name.
func ParseByteOrder(name string) (ByteOrder, error) {
	switch name {
	case "", "big":
		return BigEndian, nil
	case "little":
		return LittleEndian, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidByteOrder, name)
	}
}

// String returns the config name of the order.
func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// ValidateWidth checks a channel byte width against the supported set.
func ValidateWidth(width int) error {
	if width < 1 || width > 4 {
		return fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return nil
}

// maxForWidth returns the full-scale integer for a width, 2^(8w)-1.
func maxForWidth(width int) uint64 {
	return 1<<(8*uint(width)) - 1
}

// EncodeValue scales a normalized value in [0,1] to the channel width and
// splits it into width bytes in the given order. 16-bit full scale is
// 65535, so EncodeValue and DecodeValue round-trip within one LSB.
func EncodeValue(v float64, width int, order ByteOrder) ([]byte, error) {
	if err := ValidateWidth(width); err != nil {
		return nil, err
	}
	if v < 0 || v > 1 || math.IsNaN(v) {
		return nil, fmt.Errorf("%w: %v", ErrValueRange, v)
	}

	raw := uint64(math.Round(v * float64(maxForWidth(width))))
	out := make([]byte, width)
	for i := 0; i < width; i++ {
		shift := uint(8 * i)
		if order == BigEndian {
			shift = uint(8 * (width - 1 - i))
		}
		out[i] = byte(raw >> shift)
	}
	return out, nil
}

// DecodeValue is the inverse of EncodeValue: it reassembles the bytes in
// the given order and normalizes back into [0,1].
func DecodeValue(data []byte, order ByteOrder) (float64, error) {
	width := len(data)
	if err := ValidateWidth(width); err != nil {
		return 0, err
	}

	var raw uint64
	for i, b := range data {
		shift := uint(8 * i)
		if order == BigEndian {
			shift = uint(8 * (width - 1 - i))
		}
		raw |= uint64(b) << shift
	}
	return float64(raw) / float64(maxForWidth(width)), nil
}
