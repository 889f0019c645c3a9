package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openlumen/lumen-core/internal/dmx"
)

// UDPPort is the fixed Art-Net port (0x1936).
const UDPPort = 6454

// ProtocolVersion is the Art-Net protocol revision carried in every
// packet that has a ProtVer field.
const ProtocolVersion = 14

// OpCode identifies an Art-Net packet type. Carried little-endian on the
// wire, unlike every other multi-byte field.
type OpCode uint16

const (
	OpPoll      OpCode = 0x2000
	OpPollReply OpCode = 0x2100
	OpDmx       OpCode = 0x5000
	OpSync      OpCode = 0x5200
	OpTrigger   OpCode = 0x9900
)

// String returns the packet name for logs.
func (op OpCode) String() string {
	switch op {
	case OpPoll:
		return "ArtPoll"
	case OpPollReply:
		return "ArtPollReply"
	case OpDmx:
		return "ArtDmx"
	case OpSync:
		return "ArtSync"
	case OpTrigger:
		return "ArtTrigger"
	default:
		return fmt.Sprintf("OpCode(0x%04X)", uint16(op))
	}
}

// Node style codes reported in ArtPollReply.
const (
	StyleNode       = 0x00
	StyleController = 0x01
)

var packetHeader = []byte("Art-Net\x00")

const headerSize = len("Art-Net\x00") + 2 // signature + opcode

// PeekOpCode validates the signature of a datagram and returns its
// opcode without parsing the body.
func PeekOpCode(data []byte) (OpCode, error) {
	if len(data) < headerSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if !bytes.Equal(data[:8], packetHeader) {
		return 0, ErrBadHeader
	}
	return OpCode(binary.LittleEndian.Uint16(data[8:10])), nil
}

// appendHeader writes the signature and opcode.
func appendHeader(buf []byte, op OpCode) []byte {
	buf = append(buf, packetHeader...)
	return binary.LittleEndian.AppendUint16(buf, uint16(op))
}

// consumeHeader validates the signature and expected opcode, returning
// the body.
func consumeHeader(data []byte, want OpCode) ([]byte, error) {
	got, err := PeekOpCode(data)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrBadOpCode, got, want)
	}
	return data[headerSize:], nil
}

// PollPacket is an ArtPoll discovery request.
type PollPacket struct {
	// TargetedMode restricts the poll to nodes servicing port addresses
	// within [TargetBottom, TargetTop].
	TargetedMode bool
	TargetBottom dmx.PortAddress
	TargetTop    dmx.PortAddress

	// NotifyOnChange asks the polled node to push unsolicited
	// ArtPollReply packets when its configuration changes.
	NotifyOnChange bool
}

// Marshal serializes the poll.
func (p *PollPacket) Marshal() []byte {
	buf := appendHeader(make([]byte, 0, 18), OpPoll)
	buf = binary.BigEndian.AppendUint16(buf, ProtocolVersion)

	var flags byte
	if p.TargetedMode {
		flags |= 1 << 5
	}
	if p.NotifyOnChange {
		flags |= 1 << 1
	}
	buf = append(buf, flags)
	buf = append(buf, 0) // diagnostics priority, unused

	buf = binary.BigEndian.AppendUint16(buf, p.TargetTop.Packed())
	buf = binary.BigEndian.AppendUint16(buf, p.TargetBottom.Packed())
	return buf
}

// ParsePoll deserializes an ArtPoll. The target bounds are optional on
// the wire; pre-Art-Net 4 controllers send the short form.
func ParsePoll(data []byte) (*PollPacket, error) {
	body, err := consumeHeader(data, OpPoll)
	if err != nil {
		return nil, err
	}
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: ArtPoll body %d bytes", ErrShortPacket, len(body))
	}

	flags := body[2]
	p := &PollPacket{
		TargetedMode:   flags&(1<<5) != 0,
		NotifyOnChange: flags&(1<<1) != 0,
	}

	if len(body) >= 8 {
		p.TargetTop = dmx.PortAddressFromPacked(binary.BigEndian.Uint16(body[4:6]))
		p.TargetBottom = dmx.PortAddressFromPacked(binary.BigEndian.Uint16(body[6:8]))
	}
	return p, nil
}

// PollReplyPacket is an ArtPollReply node announcement. The fixed-size
// wire form is 239 bytes.
type PollReplyPacket struct {
	IP              [4]byte
	Port            uint16
	FirmwareVersion uint16
	Net             uint8
	SubNet          uint8
	OEM             uint16
	ESTA            uint16
	ShortName       string // at most 17 characters on the wire
	LongName        string // at most 63 characters
	NodeReport      string // at most 63 characters

	// Per-port arrays; up to four ports per bind index. PortTypes bit 7
	// marks an output port, bit 6 an input port.
	NumPorts    uint16
	PortTypes   [4]byte
	GoodInput   [4]byte
	GoodOutput  [4]byte
	SwIn        [4]byte
	SwOut       [4]byte
	GoodOutputB [4]byte

	AcnPriority uint8
	Style       uint8
	MAC         [6]byte
	BindIP      [4]byte
	BindIndex   uint8
	Status1     uint8
	Status2     uint8
	Status3     uint8
}

// Port capability bits in PortTypes.
const (
	PortCanOutput = 1 << 7
	PortCanInput  = 1 << 6
)

// GoodInput / GoodOutput activity bits.
const (
	InputDataReceived     = 1 << 7
	OutputDataTransmitted = 1 << 7
)

const pollReplySize = 239

// Marshal serializes the reply into its fixed 239-byte form.
func (p *PollReplyPacket) Marshal() []byte {
	buf := appendHeader(make([]byte, 0, pollReplySize), OpPollReply)

	buf = append(buf, p.IP[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, p.Port)
	buf = binary.BigEndian.AppendUint16(buf, p.FirmwareVersion)
	buf = append(buf, p.Net, p.SubNet)
	buf = binary.BigEndian.AppendUint16(buf, p.OEM)
	buf = append(buf, 0) // UBEA version, not present
	buf = append(buf, p.Status1)
	buf = binary.LittleEndian.AppendUint16(buf, p.ESTA)
	buf = appendPaddedString(buf, p.ShortName, 18)
	buf = appendPaddedString(buf, p.LongName, 64)
	buf = appendPaddedString(buf, p.NodeReport, 64)
	buf = binary.BigEndian.AppendUint16(buf, p.NumPorts)
	buf = append(buf, p.PortTypes[:]...)
	buf = append(buf, p.GoodInput[:]...)
	buf = append(buf, p.GoodOutput[:]...)
	buf = append(buf, p.SwIn[:]...)
	buf = append(buf, p.SwOut[:]...)
	buf = append(buf, p.AcnPriority)
	buf = append(buf, 0, 0)    // SwMacro, SwRemote
	buf = append(buf, 0, 0, 0) // spare
	buf = append(buf, p.Style)
	buf = append(buf, p.MAC[:]...)
	buf = append(buf, p.BindIP[:]...)
	buf = append(buf, p.BindIndex)
	buf = append(buf, p.Status2)
	buf = append(buf, p.GoodOutputB[:]...)
	buf = append(buf, p.Status3)
	buf = append(buf, make([]byte, 6)...)  // default responder UID
	buf = append(buf, make([]byte, 15)...) // filler
	return buf
}

// ParsePollReply deserializes an ArtPollReply. Fields past SwOut are
// optional; very old nodes truncate there.
func ParsePollReply(data []byte) (*PollReplyPacket, error) {
	body, err := consumeHeader(data, OpPollReply)
	if err != nil {
		return nil, err
	}
	// Through the SwOut array.
	if len(body) < 184 {
		return nil, fmt.Errorf("%w: ArtPollReply body %d bytes", ErrShortPacket, len(body))
	}

	p := &PollReplyPacket{}
	copy(p.IP[:], body[0:4])
	p.Port = binary.LittleEndian.Uint16(body[4:6])
	p.FirmwareVersion = binary.BigEndian.Uint16(body[6:8])
	p.Net = body[8]
	p.SubNet = body[9]
	p.OEM = binary.BigEndian.Uint16(body[10:12])
	p.Status1 = body[13]
	p.ESTA = binary.LittleEndian.Uint16(body[14:16])
	p.ShortName = trimPaddedString(body[16:34])
	p.LongName = trimPaddedString(body[34:98])
	p.NodeReport = trimPaddedString(body[98:162])
	p.NumPorts = binary.BigEndian.Uint16(body[162:164])
	copy(p.PortTypes[:], body[164:168])
	copy(p.GoodInput[:], body[168:172])
	copy(p.GoodOutput[:], body[172:176])
	copy(p.SwIn[:], body[176:180])
	copy(p.SwOut[:], body[180:184])

	if len(body) >= 185 {
		p.AcnPriority = body[184]
	}
	if len(body) >= 191 {
		p.Style = body[190]
	}
	if len(body) >= 197 {
		copy(p.MAC[:], body[191:197])
	}
	if len(body) >= 202 {
		copy(p.BindIP[:], body[197:201])
		p.BindIndex = body[201]
	}
	if len(body) >= 203 {
		p.Status2 = body[202]
	}
	if len(body) >= 207 {
		copy(p.GoodOutputB[:], body[203:207])
	}
	if len(body) >= 208 {
		p.Status3 = body[207]
	}
	return p, nil
}

// OutputAddresses returns the port addresses this node outputs DMX on.
func (p *PollReplyPacket) OutputAddresses() []dmx.PortAddress {
	var out []dmx.PortAddress
	for i := 0; i < 4; i++ {
		if p.PortTypes[i]&PortCanOutput == 0 {
			continue
		}
		out = append(out, dmx.PortAddress{
			Net:      p.Net,
			SubNet:   p.SubNet,
			Universe: p.SwOut[i] & 0x0F,
		})
	}
	return out
}

// DmxPacket is an ArtDmx data packet carrying up to 512 slots for one
// universe.
type DmxPacket struct {
	Sequence uint8 // 0 disables sequencing, else 1-255
	Physical uint8
	Address  dmx.PortAddress
	Data     []byte
}

// Marshal serializes the packet. Odd data lengths are padded by one
// zero slot to satisfy the protocol's even-length rule.
func (p *DmxPacket) Marshal() ([]byte, error) {
	n := len(p.Data)
	if n < 1 || n > dmx.SlotCount {
		return nil, fmt.Errorf("%w: %d", ErrDataLength, n)
	}
	padded := n
	if padded%2 == 1 {
		padded++
	}

	packed := p.Address.Packed()
	buf := appendHeader(make([]byte, 0, headerSize+8+padded), OpDmx)
	buf = binary.BigEndian.AppendUint16(buf, ProtocolVersion)
	buf = append(buf, p.Sequence, p.Physical)
	buf = append(buf, byte(packed&0xFF), byte(packed>>8)) // SubUni, Net
	buf = binary.BigEndian.AppendUint16(buf, uint16(padded))
	buf = append(buf, p.Data...)
	if padded != n {
		buf = append(buf, 0)
	}
	return buf, nil
}

// ParseDmx deserializes an ArtDmx packet.
func ParseDmx(data []byte) (*DmxPacket, error) {
	body, err := consumeHeader(data, OpDmx)
	if err != nil {
		return nil, err
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: ArtDmx body %d bytes", ErrShortPacket, len(body))
	}

	length := int(binary.BigEndian.Uint16(body[6:8]))
	if length < 1 || length > dmx.SlotCount {
		return nil, fmt.Errorf("%w: %d", ErrDataLength, length)
	}
	if len(body) < 8+length {
		return nil, fmt.Errorf("%w: ArtDmx truncated, %d of %d slots", ErrShortPacket, len(body)-8, length)
	}

	packed := uint16(body[4]) | uint16(body[5])<<8
	return &DmxPacket{
		Sequence: body[2],
		Physical: body[3],
		Address:  dmx.PortAddressFromPacked(packed),
		Data:     body[8 : 8+length],
	}, nil
}

// TriggerPacket is an ArtTrigger show-control event.
type TriggerPacket struct {
	OEM     uint16
	Key     uint8
	SubKey  uint8
	Payload []byte // null-terminated on the wire, at most 512 bytes
}

// Marshal serializes the trigger.
func (p *TriggerPacket) Marshal() ([]byte, error) {
	if len(p.Payload) > dmx.SlotCount {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p.Payload))
	}

	buf := appendHeader(make([]byte, 0, headerSize+8+len(p.Payload)), OpTrigger)
	buf = binary.BigEndian.AppendUint16(buf, ProtocolVersion)
	buf = append(buf, 0, 0) // filler
	buf = append(buf, byte(p.OEM>>8), byte(p.OEM&0xFF))
	buf = append(buf, p.Key, p.SubKey)
	buf = append(buf, p.Payload...)
	return buf, nil
}

// ParseTrigger deserializes an ArtTrigger.
func ParseTrigger(data []byte) (*TriggerPacket, error) {
	body, err := consumeHeader(data, OpTrigger)
	if err != nil {
		return nil, err
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: ArtTrigger body %d bytes", ErrShortPacket, len(body))
	}

	payload := body[8:]
	if len(payload) > dmx.SlotCount {
		payload = payload[:dmx.SlotCount]
	}
	return &TriggerPacket{
		OEM:     uint16(body[4])<<8 | uint16(body[5]),
		Key:     body[6],
		SubKey:  body[7],
		Payload: payload,
	}, nil
}

// PayloadString decodes the payload as a null-terminated UTF-8 string,
// replacing invalid sequences rather than failing.
func (p *TriggerPacket) PayloadString() string {
	raw := p.Payload
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// SyncPacket is an ArtSync. Accepted on the wire and intentionally not
// acted on; Marshal exists so peers that expect one still get it.
type SyncPacket struct{}

// Marshal serializes the sync packet.
func (p *SyncPacket) Marshal() []byte {
	buf := appendHeader(make([]byte, 0, headerSize+4), OpSync)
	buf = binary.BigEndian.AppendUint16(buf, ProtocolVersion)
	buf = append(buf, 0, 0) // Aux1, Aux2
	return buf
}

// appendPaddedString writes s null-padded to length, truncating to
// length-1 so the terminator always survives.
func appendPaddedString(buf []byte, s string, length int) []byte {
	if len(s) > length-1 {
		s = s[:length-1]
	}
	buf = append(buf, s...)
	return append(buf, make([]byte, length-len(s))...)
}

// trimPaddedString returns the string up to the first null byte.
func trimPaddedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
