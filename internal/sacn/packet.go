package sacn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/openlumen/lumen-core/internal/dmx"
)

// UDPPort is the fixed sACN port.
const UDPPort = 5568

// MaxPriority is the highest legal E1.31 priority; the default is 100.
const (
	MaxPriority     = 200
	DefaultPriority = 100
)

// Layer vectors.
const (
	vectorRootData     = 0x00000004
	vectorRootExtended = 0x00000008
	vectorFramingData  = 0x00000002
	vectorFramingSync  = 0x00000001
	vectorDMP          = 0x02
)

// Options bits in the framing layer.
const (
	OptionPreview    = 1 << 7
	OptionTerminated = 1 << 6
	OptionForceSync  = 1 << 5
)

// acnPacketIdentifier is the fixed 12-byte root-layer identifier.
var acnPacketIdentifier = []byte("ASC-E1.17\x00\x00\x00")

const (
	dataHeaderSize = 126
	syncPacketSize = 49
	sourceNameSize = 64
)

// MulticastGroup returns the multicast address for a universe:
// 239.255.hi.lo from the universe's two bytes.
func MulticastGroup(universe dmx.UniverseID) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe&0xFF))
}

// DataPacket is an E1.31 data packet: one universe's slot data plus the
// arbitration metadata.
type DataPacket struct {
	CID        [16]byte
	SourceName string // at most 63 bytes on the wire
	Priority   uint8
	SyncAddr   uint16
	Sequence   uint8
	Universe   dmx.UniverseID
	Data       []byte

	Preview    bool
	Terminated bool
	ForceSync  bool
}

// flagsAndLength packs the ACN flags nibble (0x7) with a 12-bit length.
func flagsAndLength(n int) uint16 {
	return 0x7000 | uint16(n&0x0FFF)
}

// Marshal serializes the data packet.
func (p *DataPacket) Marshal() ([]byte, error) {
	if len(p.Data) < 1 || len(p.Data) > dmx.SlotCount {
		return nil, fmt.Errorf("%w: %d", ErrDataLength, len(p.Data))
	}
	if p.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: %d", ErrPriorityRange, p.Priority)
	}
	if len(p.SourceName) > sourceNameSize-1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(p.SourceName))
	}
	if err := p.Universe.Validate(); err != nil {
		return nil, err
	}

	total := dataHeaderSize + len(p.Data)
	buf := make([]byte, total)

	// Root layer.
	binary.BigEndian.PutUint16(buf[0:2], 0x0010) // preamble size
	binary.BigEndian.PutUint16(buf[2:4], 0x0000) // postamble size
	copy(buf[4:16], acnPacketIdentifier)
	binary.BigEndian.PutUint16(buf[16:18], flagsAndLength(total-16))
	binary.BigEndian.PutUint32(buf[18:22], vectorRootData)
	copy(buf[22:38], p.CID[:])

	// Framing layer.
	binary.BigEndian.PutUint16(buf[38:40], flagsAndLength(total-38))
	binary.BigEndian.PutUint32(buf[40:44], vectorFramingData)
	copy(buf[44:44+sourceNameSize], p.SourceName)
	buf[108] = p.Priority
	binary.BigEndian.PutUint16(buf[109:111], p.SyncAddr)
	buf[111] = p.Sequence
	buf[112] = p.options()
	binary.BigEndian.PutUint16(buf[113:115], uint16(p.Universe))

	// DMP layer.
	binary.BigEndian.PutUint16(buf[115:117], flagsAndLength(total-115))
	buf[117] = vectorDMP
	// Address & data type byte, then first property address and the
	// address increment.
	buf[118] = 0xA1
	binary.BigEndian.PutUint16(buf[119:121], 0x0000)
	binary.BigEndian.PutUint16(buf[121:123], 0x0001)
	// Property value count covers the start code plus the slots.
	binary.BigEndian.PutUint16(buf[123:125], uint16(1+len(p.Data)))
	buf[125] = 0x00 // start code
	copy(buf[dataHeaderSize:], p.Data)
	return buf, nil
}

func (p *DataPacket) options() byte {
	var o byte
	if p.Preview {
		o |= OptionPreview
	}
	if p.Terminated {
		o |= OptionTerminated
	}
	if p.ForceSync {
		o |= OptionForceSync
	}
	return o
}

// validateRoot checks the preamble and packet identifier and returns the
// root vector.
func validateRoot(data []byte) (uint32, error) {
	if len(data) < 22 {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if binary.BigEndian.Uint16(data[0:2]) != 0x0010 ||
		!bytes.Equal(data[4:16], acnPacketIdentifier) {
		return 0, ErrBadPacket
	}
	return binary.BigEndian.Uint32(data[18:22]), nil
}

// ParseData deserializes an E1.31 data packet.
func ParseData(data []byte) (*DataPacket, error) {
	vector, err := validateRoot(data)
	if err != nil {
		return nil, err
	}
	if vector != vectorRootData {
		return nil, fmt.Errorf("%w: root 0x%08X", ErrBadVector, vector)
	}
	if len(data) < dataHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if fv := binary.BigEndian.Uint32(data[40:44]); fv != vectorFramingData {
		return nil, fmt.Errorf("%w: framing 0x%08X", ErrBadVector, fv)
	}
	if data[117] != vectorDMP {
		return nil, fmt.Errorf("%w: dmp 0x%02X", ErrBadVector, data[117])
	}

	count := int(binary.BigEndian.Uint16(data[123:125]))
	slots := count - 1 // first property value is the start code
	if slots < 1 || slots > dmx.SlotCount {
		return nil, fmt.Errorf("%w: %d", ErrDataLength, slots)
	}
	if len(data) < dataHeaderSize+slots {
		return nil, fmt.Errorf("%w: %d of %d slots", ErrShortPacket, len(data)-dataHeaderSize, slots)
	}
	if data[125] != 0x00 {
		// Alternate start codes (RDM etc.) are out of scope.
		return nil, fmt.Errorf("%w: start code 0x%02X", ErrBadVector, data[125])
	}

	p := &DataPacket{
		SourceName: trimName(data[44 : 44+sourceNameSize]),
		Priority:   data[108],
		SyncAddr:   binary.BigEndian.Uint16(data[109:111]),
		Sequence:   data[111],
		Universe:   dmx.UniverseID(binary.BigEndian.Uint16(data[113:115])),
		Data:       data[dataHeaderSize : dataHeaderSize+slots],
		Preview:    data[112]&OptionPreview != 0,
		Terminated: data[112]&OptionTerminated != 0,
		ForceSync:  data[112]&OptionForceSync != 0,
	}
	copy(p.CID[:], data[22:38])

	if p.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: %d", ErrPriorityRange, p.Priority)
	}
	return p, nil
}

// SyncPacket is an E1.31 universe synchronization packet.
type SyncPacket struct {
	CID      [16]byte
	Sequence uint8
	SyncAddr uint16
}

// Marshal serializes the sync packet into its fixed 49-byte form.
func (p *SyncPacket) Marshal() []byte {
	buf := make([]byte, syncPacketSize)

	binary.BigEndian.PutUint16(buf[0:2], 0x0010)
	binary.BigEndian.PutUint16(buf[2:4], 0x0000)
	copy(buf[4:16], acnPacketIdentifier)
	binary.BigEndian.PutUint16(buf[16:18], flagsAndLength(syncPacketSize-16))
	binary.BigEndian.PutUint32(buf[18:22], vectorRootExtended)
	copy(buf[22:38], p.CID[:])

	binary.BigEndian.PutUint16(buf[38:40], flagsAndLength(syncPacketSize-38))
	binary.BigEndian.PutUint32(buf[40:44], vectorFramingSync)
	buf[44] = p.Sequence
	binary.BigEndian.PutUint16(buf[45:47], p.SyncAddr)
	// buf[47:49] reserved
	return buf
}

// ParseSync deserializes a universe synchronization packet.
func ParseSync(data []byte) (*SyncPacket, error) {
	vector, err := validateRoot(data)
	if err != nil {
		return nil, err
	}
	if vector != vectorRootExtended {
		return nil, fmt.Errorf("%w: root 0x%08X", ErrBadVector, vector)
	}
	if len(data) < syncPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if fv := binary.BigEndian.Uint32(data[40:44]); fv != vectorFramingSync {
		return nil, fmt.Errorf("%w: framing 0x%08X", ErrBadVector, fv)
	}

	p := &SyncPacket{
		Sequence: data[44],
		SyncAddr: binary.BigEndian.Uint16(data[45:47]),
	}
	copy(p.CID[:], data[22:38])
	return p, nil
}

// RootVector classifies a datagram without a full parse so the receive
// loop can route it.
func RootVector(data []byte) (uint32, error) {
	return validateRoot(data)
}

// acceptSequence implements the E1.31 sequence window: a packet is
// rejected when it goes backwards by fewer than 20, which filters
// reordered datagrams while still recovering from a source restart.
func acceptSequence(last, next uint8) bool {
	diff := int8(next - last)
	return diff > 0 || diff <= -20
}

func trimName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
