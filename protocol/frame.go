package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Frame sizes.
const (
	OpcodeSize   = 1
	ChecksumSize = 1

	maxShortPayload = 0xFF
	maxLongPayload  = 0xFFFF
)

// Protocol frame and helpers.
// Layout: Opcode(1) | Length(1, or 2 for LongLength opcodes) | Payload(N) | Checksum(1)
// The checksum is the XOR of all payload bytes.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Overhead returns the bytes a frame with this opcode adds around its payload.
func Overhead(op Opcode) int {
	return OpcodeSize + lengthSize(op) + ChecksumSize
}

func lengthSize(op Opcode) int {
	if op.LongLength() {
		return 2
	}
	return 1
}

// Checksum folds payload bytes with XOR.
func Checksum(payload []byte) byte {
	var c byte
	for _, b := range payload {
		c ^= b
	}
	return c
}

// Bytes serializes the frame for the wire.
func (f Frame) Bytes() ([]byte, error) {
	ls := lengthSize(f.Opcode)
	if (ls == 1 && len(f.Payload) > maxShortPayload) || len(f.Payload) > maxLongPayload {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%v payload of %d bytes", f.Opcode, len(f.Payload))
	}
	ser := make([]byte, 0, len(f.Payload)+Overhead(f.Opcode))
	ser = append(ser, byte(f.Opcode))
	if ls == 2 {
		ser = binary.BigEndian.AppendUint16(ser, uint16(len(f.Payload)))
	} else {
		ser = append(ser, byte(len(f.Payload)))
	}
	ser = append(ser, f.Payload...)
	ser = append(ser, Checksum(f.Payload))
	return ser, nil
}

// DecodeFrame parses exactly one complete frame.
func DecodeFrame(data []byte) (Frame, error) {
	f, n, err := scanFrame(data)
	if err != nil {
		return Frame{}, err
	}
	if n == 0 {
		return Frame{}, malformed("incomplete frame of %d bytes", len(data))
	}
	if n != len(data) {
		return Frame{}, malformed("%d trailing bytes after frame", len(data)-n)
	}
	return f, nil
}

// scanFrame looks for a frame at the start of data. n == 0 with a nil error means more
// bytes are needed.
func scanFrame(data []byte) (f Frame, n int, err error) {
	if len(data) < OpcodeSize {
		return Frame{}, 0, nil
	}
	op := Opcode(data[0])
	ls := lengthSize(op)
	if len(data) < OpcodeSize+ls {
		return Frame{}, 0, nil
	}
	var length int
	if ls == 2 {
		length = int(binary.BigEndian.Uint16(data[1:3]))
	} else {
		length = int(data[1])
	}
	total := OpcodeSize + ls + length + ChecksumSize
	if len(data) < total {
		return Frame{}, 0, nil
	}
	payload := data[OpcodeSize+ls : total-ChecksumSize]
	if Checksum(payload) != data[total-1] {
		return Frame{}, total, malformed("%v checksum mismatch", op)
	}
	f = Frame{Opcode: op, Payload: append([]byte(nil), payload...)}
	return f, total, nil
}

// FrameParser reassembles frames from notification fragments.
// A frame may span several notifications and one notification may hold several frames.
type FrameParser struct {
	buf []byte
}

// Feed appends received bytes and returns every frame completed by them.
// A frame failing its checksum is skipped one byte at a time until the stream resyncs;
// the returned error reports how many bytes were discarded.
func (p *FrameParser) Feed(b []byte) ([]Frame, error) {
	p.buf = append(p.buf, b...)
	var (
		frames    []Frame
		discarded int
	)
	for len(p.buf) > 0 {
		f, n, err := scanFrame(p.buf)
		if err != nil {
			p.buf = p.buf[1:]
			discarded++
			continue
		}
		if n == 0 {
			break
		}
		frames = append(frames, f)
		p.buf = p.buf[n:]
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	if discarded > 0 {
		return frames, malformed("discarded %d bytes while resyncing", discarded)
	}
	return frames, nil
}

// Pending returns the number of buffered bytes of an incomplete frame.
func (p *FrameParser) Pending() int {
	return len(p.buf)
}

// Reset drops any partial frame.
func (p *FrameParser) Reset() {
	p.buf = nil
}
