package infinity

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"
)

func TestCRC16(t *testing.T) {
	tests := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte{}, 0x0000},
		{[]byte{0x00}, 0x0000},
		{[]byte{0x01}, 0xC0C1},
		{[]byte("123456789"), 0xBB3D},
	}

	for _, test := range tests {
		if got := CRC16(test.data); got != test.expected {
			t.Errorf("CRC16(% x) = %#04x, expected %#04x", test.data, got, test.expected)
		}
	}
}

func TestBuildFrame(t *testing.T) {
	data, _ := hex.DecodeString("00400a")
	frame := BuildFrame(Thermostat, SAM, OpRead, data)

	if len(frame) != len(data)+10 {
		t.Fatalf("frame length %d, expected %d", len(frame), len(data)+10)
	}
	if dst := binary.BigEndian.Uint16(frame[0:2]); dst != Thermostat {
		t.Errorf("destination %#04x, expected %#04x", dst, Thermostat)
	}
	if src := binary.BigEndian.Uint16(frame[2:4]); src != SAM {
		t.Errorf("source %#04x, expected %#04x", src, SAM)
	}
	if frame[4] != byte(len(data)) {
		t.Errorf("data length byte %d, expected %d", frame[4], len(data))
	}
	if frame[5] != 0x00 || frame[6] != 0x00 {
		t.Errorf("reserved bytes % x, expected zeros", frame[5:7])
	}
	if frame[7] != OpRead {
		t.Errorf("opcode %#02x, expected %#02x", frame[7], OpRead)
	}
	if !bytes.Equal(frame[8:8+len(data)], data) {
		t.Errorf("data % x, expected % x", frame[8:8+len(data)], data)
	}
	crc := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	if expected := CRC16(frame[:len(frame)-2]); crc != expected {
		t.Errorf("checksum %#04x, expected %#04x", crc, expected)
	}
}

// ack builds a reply frame the way the thermostat would send one: an
// acknowledgement to the SAM whose data leads with the table ID.
func ack(src uint16, table string, payload []byte) []byte {
	tableID, _ := hex.DecodeString(table)
	return BuildFrame(SAM, src, OpAck, append(tableID, payload...))
}

func TestParseResponse(t *testing.T) {
	tableID, _ := hex.DecodeString("004907")
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	reply := ack(Thermostat, "004907", payload)
	expected := append(append([]byte{}, tableID...), payload...)

	tests := []struct {
		name     string
		buf      []byte
		src      uint16
		table    []byte
		expected []byte
	}{
		{
			name:     "clean frame",
			buf:      reply,
			src:      Thermostat,
			table:    nil,
			expected: expected,
		},
		{
			name:     "garbage prefix",
			buf:      append([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42}, reply...),
			src:      Thermostat,
			table:    nil,
			expected: expected,
		},
		{
			name:     "garbage suffix",
			buf:      append(append([]byte{}, reply...), 0x00, 0x01, 0x02),
			src:      Thermostat,
			table:    nil,
			expected: expected,
		},
		{
			name:     "matching table filter",
			buf:      reply,
			src:      Thermostat,
			table:    tableID,
			expected: expected,
		},
		{
			name:     "empty buffer",
			buf:      nil,
			src:      Thermostat,
			expected: nil,
		},
		{
			name:     "truncated frame",
			buf:      reply[:len(reply)-3],
			src:      Thermostat,
			expected: nil,
		},
		{
			name:     "wrong source",
			buf:      ack(HeatPump, "004907", payload),
			src:      Thermostat,
			expected: nil,
		},
		{
			name:     "not an ack",
			buf:      BuildFrame(SAM, Thermostat, OpRead, expected),
			src:      Thermostat,
			expected: nil,
		},
		{
			name:     "addressed elsewhere",
			buf:      BuildFrame(HeatPump, Thermostat, OpAck, expected),
			src:      Thermostat,
			expected: nil,
		},
		{
			name:     "wrong table skipped",
			buf:      ack(Thermostat, "004901", payload),
			src:      Thermostat,
			table:    tableID,
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ParseResponse(test.buf, test.src, test.table)
			if !bytes.Equal(got, test.expected) {
				t.Errorf("ParseResponse() = % x, expected % x", got, test.expected)
			}
		})
	}
}

func TestParseResponseCorruptChecksum(t *testing.T) {
	reply := ack(Thermostat, "004907", []byte{0x01, 0x02})
	reply[len(reply)-1] ^= 0xFF

	if got := ParseResponse(reply, Thermostat, nil); got != nil {
		t.Errorf("ParseResponse() = % x, expected nil", got)
	}
}

// A frame for another device on the bus is skipped as a whole, and the
// frame after it still parses.
func TestParseResponseSkipsForeignFrame(t *testing.T) {
	foreign := BuildFrame(HeatPump, Thermostat, OpAck, []byte{0xAA, 0xBB, 0xCC})
	reply := ack(Thermostat, "004907", []byte{0x09})
	buf := append(append([]byte{}, foreign...), reply...)

	got := ParseResponse(buf, Thermostat, nil)
	tableID, _ := hex.DecodeString("004907")
	expected := append(tableID, 0x09)
	if !bytes.Equal(got, expected) {
		t.Errorf("ParseResponse() = % x, expected % x", got, expected)
	}
}

// A valid reply for the wrong table followed by one for the right table:
// the stale reply is skipped by its frame length.
func TestParseResponseSkipsStaleReply(t *testing.T) {
	stale := ack(Thermostat, "00460e", []byte{0x01, 0x02, 0x03})
	fresh := ack(Thermostat, "004907", []byte{0x07})
	buf := append(append([]byte{}, stale...), fresh...)

	tableID, _ := hex.DecodeString("004907")
	got := ParseResponse(buf, Thermostat, tableID)
	expected := append(tableID, 0x07)
	if !bytes.Equal(got, expected) {
		t.Errorf("ParseResponse() = % x, expected % x", got, expected)
	}
}

// Noise that happens to look like a frame start must not swallow the
// real frame behind it: a bad length byte advances the scan one byte at
// a time until the real frame lines up.
func TestParseResponseResyncsOnBadLength(t *testing.T) {
	reply := ack(Thermostat, "004907", []byte{0x63})
	buf := append([]byte{0x20, 0x01, 0x92, 0x01, 0xFF}, reply...)

	tableID, _ := hex.DecodeString("004907")
	got := ParseResponse(buf, Thermostat, tableID)
	expected := append(tableID, 0x63)
	if !bytes.Equal(got, expected) {
		t.Errorf("ParseResponse() = % x, expected % x", got, expected)
	}
}
