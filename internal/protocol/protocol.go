// internal/protocol/protocol.go
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Parameter protocol for the unit's non-volatile store.
// Byte layouts below must match deployed firmware exactly.

var (
	ErrUnsupportedWidth = errors.New("protocol: unsupported value width")
	ErrValueRange       = errors.New("protocol: value does not fit width")
	ErrMalformedFrame   = errors.New("protocol: malformed response frame")
)

// Opcode selects read or write.
type Opcode byte

const (
	OpRead  Opcode = 0x02
	OpWrite Opcode = 0x03
)

func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("opcode(0x%02x)", byte(o))
	}
}

// Param is one EEPROM field.
type Param struct {
	Name  string
	ID    byte
	Width int
}

// ---- PARAMETERS (LOCKED) ----

var (
	AntID     = Param{Name: "ANT_ID", ID: 0x01, Width: 2}
	HWVersion = Param{Name: "HW_VERSION", ID: 0x04, Width: 1}
	Batch     = Param{Name: "BATCH", ID: 0x06, Width: 1}
	Producer  = Param{Name: "PRODUCER", ID: 0x07, Width: 1}
)

func (p Param) String() string { return p.Name }

// ---- FRAME GEOMETRY (LOCKED) ----
//
// request:  [opcode][param_id][0x00][width][0x00][payload...]
// response: [opcode][param_id lo][param_id hi][length lo][length hi][payload(length)]
const (
	PrefixLen         = 5
	responseHeaderLen = 5

	// MaxPayload is the widest payload that fits the int64 result.
	MaxPayload = 8
)

// Prefix returns the 5-byte request prefix for op on p.
func Prefix(op Opcode, p Param) []byte {
	return prefix(op, p, p.Width)
}

func prefix(op Opcode, p Param, width int) []byte {
	return []byte{byte(op), p.ID, 0x00, byte(width), 0x00}
}

// BuildWrite encodes a write request for p.
// Width 1 is a single byte, width 2 is little-endian. The prefix declares
// width, so the frame always matches its payload.
func BuildWrite(p Param, value int64, width int) ([]byte, error) {
	var payload []byte

	switch width {
	case 1:
		if value < 0 || value > 0xFF {
			return nil, fmt.Errorf("%w: %s=%d width=1", ErrValueRange, p.Name, value)
		}
		payload = []byte{byte(value)}
	case 2:
		if value < 0 || value > 0xFFFF {
			return nil, fmt.Errorf("%w: %s=%d width=2", ErrValueRange, p.Name, value)
		}
		payload = binary.LittleEndian.AppendUint16(nil, uint16(value))
	default:
		return nil, fmt.Errorf("%w: %s width=%d", ErrUnsupportedWidth, p.Name, width)
	}

	return append(prefix(OpWrite, p, width), payload...), nil
}

// BuildRead encodes a read request for p. No payload.
func BuildRead(p Param) []byte {
	return Prefix(OpRead, p)
}

// Response is a decoded response frame.
type Response struct {
	Opcode  Opcode
	ParamID uint16
	Payload []byte
}

// Decode splits a response frame. Trailing bytes past the declared
// length are ignored. A declared length over MaxPayload is
// ErrMalformedFrame even when the frame carries that many bytes.
func Decode(frame []byte) (Response, error) {
	if len(frame) < responseHeaderLen {
		return Response{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(frame), responseHeaderLen)
	}

	n := int(binary.LittleEndian.Uint16(frame[3:5]))
	if n > MaxPayload {
		return Response{}, fmt.Errorf("%w: payload length %d exceeds %d", ErrMalformedFrame, n, MaxPayload)
	}
	if responseHeaderLen+n > len(frame) {
		return Response{}, fmt.Errorf("%w: payload length %d, frame has %d", ErrMalformedFrame, n, len(frame)-responseHeaderLen)
	}

	return Response{
		Opcode:  Opcode(frame[0]),
		ParamID: binary.LittleEndian.Uint16(frame[1:3]),
		Payload: frame[responseHeaderLen : responseHeaderLen+n],
	}, nil
}

// ParseResponse decodes frame and returns its payload as a
// little-endian unsigned integer. An empty payload is zero.
//
// ErrMalformedFrame is returned when the frame is shorter than the
// 5-byte header, when the declared length runs past the frame, or when
// the declared length exceeds MaxPayload (8) bytes.
func ParseResponse(frame []byte) (int64, error) {
	r, err := Decode(frame)
	if err != nil {
		return 0, err
	}
	return int64(littleEndian(r.Payload)), nil
}

// EncodeResponse builds a response frame; used by the simulated unit.
func EncodeResponse(op Opcode, p Param, payload []byte) []byte {
	out := make([]byte, 0, responseHeaderLen+len(payload))
	out = append(out, byte(op))
	out = binary.LittleEndian.AppendUint16(out, uint16(p.ID))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(payload)))
	return append(out, payload...)
}

func littleEndian(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
