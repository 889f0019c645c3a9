package fixture

import "errors"

var (
	// ErrUnknownRole indicates a channel-setup token that maps to no
	// known channel role.
	ErrUnknownRole = errors.New("fixture: unknown channel role")

	// ErrInvalidWidth indicates a channel byte width outside {1,2,3,4}.
	ErrInvalidWidth = errors.New("fixture: invalid channel byte width")

	// ErrInvalidByteOrder indicates an unrecognized byte-order name.
	ErrInvalidByteOrder = errors.New("fixture: invalid byte order")

	// ErrInvalidCurve indicates an unrecognized output-correction name.
	ErrInvalidCurve = errors.New("fixture: invalid output correction")

	// ErrConstantRange indicates a literal layout constant outside 0-255.
	ErrConstantRange = errors.New("fixture: constant out of range")

	// ErrEmptyLayout indicates a channel setup with no entries.
	ErrEmptyLayout = errors.New("fixture: empty channel setup")

	// ErrValueRange indicates a semantic value outside [0,1] reaching the
	// codec.
	ErrValueRange = errors.New("fixture: value out of range")

	// ErrLengthMismatch indicates a decode buffer whose length does not
	// match the layout footprint.
	ErrLengthMismatch = errors.New("fixture: data length mismatch")

	// ErrDeviceRange indicates a device whose slots extend past the
	// 512-slot universe.
	ErrDeviceRange = errors.New("fixture: device exceeds universe bounds")

	// ErrDuplicateDevice indicates two devices registered under one name.
	ErrDuplicateDevice = errors.New("fixture: duplicate device name")
)
