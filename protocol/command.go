package protocol

import (
	"encoding/binary"
)

// Builder accumulates a command payload field by field.
// Appenders never fail; length checks happen when the frame is serialized.
type Builder struct {
	op      Opcode
	payload []byte
}

func NewBuilder(op Opcode) *Builder {
	return &Builder{op: op, payload: make([]byte, 0, 16)}
}

func (b *Builder) Byte(v byte) *Builder {
	b.payload = append(b.payload, v)
	return b
}

func (b *Builder) Uint8(v uint8) *Builder {
	return b.Byte(v)
}

func (b *Builder) Uint16(v uint16) *Builder {
	b.payload = binary.BigEndian.AppendUint16(b.payload, v)
	return b
}

func (b *Builder) Uint32(v uint32) *Builder {
	b.payload = binary.BigEndian.AppendUint32(b.payload, v)
	return b
}

func (b *Builder) Int8(v int8) *Builder {
	return b.Byte(byte(v))
}

func (b *Builder) Int16(v int16) *Builder {
	return b.Uint16(uint16(v))
}

func (b *Builder) Int32(v int32) *Builder {
	return b.Uint32(uint32(v))
}

func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.Byte(1)
	}
	return b.Byte(0)
}

func (b *Builder) Rotation(r Rotation) *Builder {
	return b.Byte(byte(r))
}

// String appends s followed by a NUL terminator.
func (b *Builder) String(s string) *Builder {
	b.payload = append(b.payload, s...)
	return b.Byte(0)
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(p []byte) *Builder {
	b.payload = append(b.payload, p...)
	return b
}

// QueryID appends the correlation token as [len][bytes].
func (b *Builder) QueryID(q QueryID) *Builder {
	b.payload = append(b.payload, byte(len(q.b)))
	b.payload = append(b.payload, q.b...)
	return b
}

// uintN appends the low size bytes of v big-endian.
func (b *Builder) uintN(v uint64, size int) *Builder {
	for i := size - 1; i >= 0; i-- {
		b.payload = append(b.payload, byte(v>>(8*uint(i))))
	}
	return b
}

func (b *Builder) Opcode() Opcode {
	return b.op
}

func (b *Builder) Payload() []byte {
	return b.payload
}

func (b *Builder) Frame() Frame {
	return Frame{Opcode: b.op, Payload: b.payload}
}

// Bytes serializes the accumulated command.
func (b *Builder) Bytes() ([]byte, error) {
	return b.Frame().Bytes()
}
