package infinity

import (
	"bytes"
	"encoding/binary"
)

// Bus addresses. The bridge always speaks as the SAM, the wall control
// answers as the thermostat and the outdoor unit as the heat pump.
const (
	Thermostat uint16 = 0x2001
	SAM        uint16 = 0x9201
	HeatPump   uint16 = 0x5101
)

// Frame opcodes.
const (
	OpRead  byte = 0x0B
	OpWrite byte = 0x0C
	OpAck   byte = 0x06
)

// frameOverhead is everything around the data section: destination (2),
// source (2), data length (1), two reserved bytes, opcode (1), CRC (2).
const frameOverhead = 10

// maxDataLen rejects nonsense length bytes while scanning noisy input.
const maxDataLen = 200

// CRC16 computes the checksum the bus uses to frame messages: reflected
// polynomial 0xA001, initial value 0, no final XOR.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// BuildFrame assembles a complete wire frame: big endian addresses, data
// length, two reserved zero bytes, opcode, data and a little endian CRC
// over everything before it.
func BuildFrame(dst, src uint16, op byte, data []byte) []byte {
	frame := make([]byte, 0, len(data)+frameOverhead)
	frame = binary.BigEndian.AppendUint16(frame, dst)
	frame = binary.BigEndian.AppendUint16(frame, src)
	frame = append(frame, byte(len(data)), 0x00, 0x00, op)
	frame = append(frame, data...)
	return binary.LittleEndian.AppendUint16(frame, CRC16(frame))
}

// ParseResponse scans buf for the first acknowledgement addressed to us
// from src. The bus carries unrelated traffic and the read can start mid
// frame, so scanning resumes one byte further after anything that does
// not checksum, and a whole frame further after valid frames meant for
// somebody else. When table is non-empty the frame data must start with
// those table ID bytes, otherwise the frame is skipped as a stale reply.
// Returns nil when buf holds no matching frame yet.
func ParseResponse(buf []byte, src uint16, table []byte) []byte {
	for pos := 0; pos < len(buf)-frameOverhead; {
		dataLen := int(buf[pos+4])
		frameLen := dataLen + frameOverhead
		if dataLen < 1 || dataLen > maxDataLen || pos+frameLen > len(buf) {
			pos++
			continue
		}
		frame := buf[pos : pos+frameLen]
		if CRC16(frame[:frameLen-2]) != binary.LittleEndian.Uint16(frame[frameLen-2:]) {
			pos++
			continue
		}
		data := frame[8 : frameLen-2]
		if binary.BigEndian.Uint16(frame[2:4]) != src ||
			binary.BigEndian.Uint16(frame[0:2]) != SAM ||
			frame[7] != OpAck {
			pos += frameLen
			continue
		}
		if len(table) > 0 && (len(data) < len(table) || !bytes.Equal(data[:len(table)], table)) {
			pos += frameLen
			continue
		}
		return data
	}
	return nil
}
