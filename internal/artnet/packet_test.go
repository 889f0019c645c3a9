package artnet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/openlumen/lumen-core/internal/dmx"
)

// ─── Header ──────────────────────────────────────────────────────────────────

func TestPeekOpCode(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		data := (&SyncPacket{}).Marshal()
		op, err := PeekOpCode(data)
		if err != nil {
			t.Fatalf("PeekOpCode: %v", err)
		}
		if op != OpSync {
			t.Errorf("opcode = %s, want ArtSync", op)
		}
	})

	t.Run("short datagram", func(t *testing.T) {
		if _, err := PeekOpCode([]byte("Art-Net")); !errors.Is(err, ErrShortPacket) {
			t.Errorf("err = %v, want ErrShortPacket", err)
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		data := []byte("Bad-Net\x00\x00\x20")
		if _, err := PeekOpCode(data); !errors.Is(err, ErrBadHeader) {
			t.Errorf("err = %v, want ErrBadHeader", err)
		}
	})
}

// ─── ArtPoll ─────────────────────────────────────────────────────────────────

func TestPollRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		poll PollPacket
	}{
		{"plain", PollPacket{}},
		{"notify only", PollPacket{NotifyOnChange: true}},
		{
			"targeted with bounds",
			PollPacket{
				TargetedMode:   true,
				NotifyOnChange: true,
				TargetBottom:   dmx.PortAddress{Net: 0, SubNet: 0, Universe: 1},
				TargetTop:      dmx.PortAddress{Net: 1, SubNet: 2, Universe: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePoll(tt.poll.Marshal())
			if err != nil {
				t.Fatalf("ParsePoll: %v", err)
			}
			if *got != tt.poll {
				t.Errorf("round trip = %+v, want %+v", *got, tt.poll)
			}
		})
	}
}

func TestPollMarshalWire(t *testing.T) {
	poll := PollPacket{
		TargetedMode:   true,
		NotifyOnChange: true,
		TargetBottom:   dmx.PortAddress{Universe: 0},
		TargetTop:      dmx.PortAddress{Net: 0, SubNet: 1, Universe: 15},
	}
	wire := poll.Marshal()

	if len(wire) != 18 {
		t.Fatalf("len = %d, want 18", len(wire))
	}
	if wire[10] != 0 || wire[11] != 14 {
		t.Errorf("ProtVer bytes = %d %d, want 0 14", wire[10], wire[11])
	}
	if wire[12] != (1<<5)|(1<<1) {
		t.Errorf("flags = 0x%02X, want targeted|notify", wire[12])
	}
	// TargetTop big-endian then TargetBottom.
	if wire[14] != 0x00 || wire[15] != 0x1F {
		t.Errorf("target top bytes = 0x%02X 0x%02X, want 0x00 0x1F", wire[14], wire[15])
	}
}

func TestParsePollShortForm(t *testing.T) {
	// Pre-Art-Net 4 controllers stop after the flags and priority bytes.
	data := appendHeader(nil, OpPoll)
	data = append(data, 0, 14, 1<<1, 0)

	poll, err := ParsePoll(data)
	if err != nil {
		t.Fatalf("ParsePoll: %v", err)
	}
	if poll.TargetedMode {
		t.Error("TargetedMode = true, want false")
	}
	if !poll.NotifyOnChange {
		t.Error("NotifyOnChange = false, want true")
	}
}

// ─── ArtPollReply ────────────────────────────────────────────────────────────

func TestPollReplyRoundTrip(t *testing.T) {
	reply := PollReplyPacket{
		IP:          [4]byte{192, 168, 1, 40},
		Port:        UDPPort,
		Net:         0,
		SubNet:      1,
		OEM:         0x2CD2,
		ESTA:        0x7FF0,
		ShortName:   "Lumen",
		LongName:    "Lumen DMX lighting controller",
		NodeReport:  "#0001 [3] 2 ports",
		NumPorts:    2,
		PortTypes:   [4]byte{PortCanOutput | PortCanInput, PortCanOutput, 0, 0},
		GoodInput:   [4]byte{InputDataReceived, 0, 0, 0},
		GoodOutput:  [4]byte{OutputDataTransmitted, OutputDataTransmitted, 0, 0},
		SwIn:        [4]byte{4, 5, 0, 0},
		SwOut:       [4]byte{4, 5, 0, 0},
		AcnPriority: 100,
		Style:       StyleController,
		MAC:         [6]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01},
		BindIP:      [4]byte{192, 168, 1, 40},
		BindIndex:   1,
		Status2:     0x08,
	}

	wire := reply.Marshal()
	if len(wire) != pollReplySize {
		t.Fatalf("wire len = %d, want %d", len(wire), pollReplySize)
	}

	got, err := ParsePollReply(wire)
	if err != nil {
		t.Fatalf("ParsePollReply: %v", err)
	}
	if *got != reply {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, reply)
	}
}

func TestParsePollReplyTruncated(t *testing.T) {
	full := (&PollReplyPacket{
		Net:       0,
		SubNet:    0,
		PortTypes: [4]byte{PortCanOutput, 0, 0, 0},
		SwOut:     [4]byte{7, 0, 0, 0},
		Style:     StyleNode,
	}).Marshal()

	// Truncate after SwOut: very old nodes omit the trailing fields.
	short := full[:headerSize+184]
	got, err := ParsePollReply(short)
	if err != nil {
		t.Fatalf("ParsePollReply: %v", err)
	}
	if got.SwOut[0] != 7 {
		t.Errorf("SwOut[0] = %d, want 7", got.SwOut[0])
	}
	if got.Style != 0 || got.BindIndex != 0 {
		t.Error("optional tail fields not zero on truncated reply")
	}

	if _, err := ParsePollReply(full[:headerSize+100]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("err = %v, want ErrShortPacket", err)
	}
}

func TestPollReplyOutputAddresses(t *testing.T) {
	reply := PollReplyPacket{
		Net:       2,
		SubNet:    3,
		PortTypes: [4]byte{PortCanOutput, PortCanInput, PortCanOutput, 0},
		SwOut:     [4]byte{0, 1, 9, 0},
	}

	got := reply.OutputAddresses()
	want := []dmx.PortAddress{
		{Net: 2, SubNet: 3, Universe: 0},
		{Net: 2, SubNet: 3, Universe: 9},
	}
	if len(got) != len(want) {
		t.Fatalf("addresses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("address[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// ─── ArtDmx ──────────────────────────────────────────────────────────────────

func TestDmxRoundTrip(t *testing.T) {
	data := make([]byte, dmx.SlotCount)
	for i := range data {
		data[i] = byte(i)
	}

	pkt := DmxPacket{
		Sequence: 42,
		Address:  dmx.PortAddress{Net: 1, SubNet: 2, Universe: 3},
		Data:     data,
	}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ParseDmx(wire)
	if err != nil {
		t.Fatalf("ParseDmx: %v", err)
	}
	if got.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", got.Sequence)
	}
	if got.Address != pkt.Address {
		t.Errorf("Address = %s, want %s", got.Address, pkt.Address)
	}
	if !bytes.Equal(got.Data, data) {
		t.Error("data mismatch after round trip")
	}
}

func TestDmxMarshalPadsOddLength(t *testing.T) {
	pkt := DmxPacket{Address: dmx.PortAddress{Universe: 1}, Data: []byte{10, 20, 30}}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// Length field is big-endian at body offset 6.
	body := wire[headerSize:]
	if body[6] != 0 || body[7] != 4 {
		t.Errorf("length bytes = %d %d, want 0 4", body[6], body[7])
	}
	if !bytes.Equal(body[8:], []byte{10, 20, 30, 0}) {
		t.Errorf("slots = %v, want padded {10 20 30 0}", body[8:])
	}
}

func TestDmxMarshalWire(t *testing.T) {
	// Net 1, sub-net 2, universe 3 packs to 0x0123: SubUni then Net on
	// the wire, little-endian as a pair.
	pkt := DmxPacket{Address: dmx.PortAddress{Net: 1, SubNet: 2, Universe: 3}, Data: []byte{0xFF, 0x00}}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	body := wire[headerSize:]
	if body[4] != 0x23 || body[5] != 0x01 {
		t.Errorf("address bytes = 0x%02X 0x%02X, want 0x23 0x01", body[4], body[5])
	}
}

func TestDmxLengthValidation(t *testing.T) {
	if _, err := (&DmxPacket{Data: nil}).Marshal(); !errors.Is(err, ErrDataLength) {
		t.Errorf("empty data err = %v, want ErrDataLength", err)
	}
	if _, err := (&DmxPacket{Data: make([]byte, 513)}).Marshal(); !errors.Is(err, ErrDataLength) {
		t.Errorf("oversize data err = %v, want ErrDataLength", err)
	}

	// Truncated on the wire: claims 10 slots, carries 2.
	wire, err := (&DmxPacket{Data: []byte{1, 2}}).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	wire[headerSize+7] = 10
	if _, err := ParseDmx(wire); !errors.Is(err, ErrShortPacket) {
		t.Errorf("truncated err = %v, want ErrShortPacket", err)
	}
}

// ─── ArtTrigger ──────────────────────────────────────────────────────────────

func TestTriggerRoundTrip(t *testing.T) {
	pkt := TriggerPacket{
		OEM:     0xFFFF,
		Key:     3,
		SubKey:  7,
		Payload: append([]byte("scene:evening"), 0),
	}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ParseTrigger(wire)
	if err != nil {
		t.Fatalf("ParseTrigger: %v", err)
	}
	if got.OEM != pkt.OEM || got.Key != pkt.Key || got.SubKey != pkt.SubKey {
		t.Errorf("fields = %+v, want %+v", got, pkt)
	}
	if got.PayloadString() != "scene:evening" {
		t.Errorf("PayloadString = %q, want %q", got.PayloadString(), "scene:evening")
	}
}

func TestTriggerPayloadString(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"null terminated", []byte("hello\x00garbage"), "hello"},
		{"no terminator", []byte("hello"), "hello"},
		{"empty", nil, ""},
		{"invalid utf-8 replaced", []byte{'o', 'k', 0xFF, 0xFE}, "ok�"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TriggerPacket{Payload: tt.payload}
			if got := p.PayloadString(); got != tt.want {
				t.Errorf("PayloadString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTriggerPayloadTooLarge(t *testing.T) {
	p := TriggerPacket{Payload: make([]byte, 513)}
	if _, err := p.Marshal(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}
