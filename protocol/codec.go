package protocol

import (
	"bytes"
	"encoding/binary"
)

// Reader is a cursor over a device payload. All integers are big-endian.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Len() < n {
		return malformed("need %d bytes at offset %d, have %d", n, r.off, r.Len())
	}
	return nil
}

// Uint reads an unsigned integer of 1, 2, 4 or 8 bytes without sign extension.
func (r *Reader) Uint(size int) (uint64, error) {
	v, err := ReadUint(r.buf, r.off, size)
	if err != nil {
		return 0, err
	}
	r.off += size
	return v, nil
}

// Int reads a signed integer of 1, 2, 4 or 8 bytes, sign-extended from its width.
func (r *Reader) Int(size int) (int64, error) {
	v, err := ReadInt(r.buf, r.off, size)
	if err != nil {
		return 0, err
	}
	r.off += size
	return v, nil
}

func (r *Reader) Uint8() (uint8, error) {
	v, err := r.Uint(1)
	return uint8(v), err
}

func (r *Reader) Uint16() (uint16, error) {
	v, err := r.Uint(2)
	return uint16(v), err
}

func (r *Reader) Uint32() (uint32, error) {
	v, err := r.Uint(4)
	return uint32(v), err
}

func (r *Reader) Int8() (int8, error) {
	v, err := r.Int(1)
	return int8(v), err
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Int(2)
	return int16(v), err
}

// Bool reads one byte; any non-zero value is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint(1)
	return v != 0, err
}

// String reads a NUL-terminated string and moves past the terminator.
func (r *Reader) String() (string, error) {
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		return "", malformed("unterminated string at offset %d", r.off)
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s, nil
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Rest returns every unread byte.
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

// ReadUint decodes a big-endian unsigned integer of the given width at offset.
func ReadUint(buf []byte, offset, size int) (uint64, error) {
	if offset < 0 || offset+size > len(buf) {
		return 0, malformed("need %d bytes at offset %d, have %d", size, offset, len(buf)-offset)
	}
	b := buf[offset : offset+size]
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), nil
	case 8:
		return binary.BigEndian.Uint64(b), nil
	}
	return 0, malformed("unsupported integer width %d", size)
}

// ReadInt decodes a big-endian signed integer of the given width at offset.
func ReadInt(buf []byte, offset, size int) (int64, error) {
	v, err := ReadUint(buf, offset, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return int64(int8(v)), nil
	case 2:
		return int64(int16(v)), nil
	case 4:
		return int64(int32(v)), nil
	}
	return int64(v), nil
}

// readUintN reads widths the fixed layouts use that are not powers of two (3-byte serials).
func (r *Reader) readUintN(size int) (uint64, error) {
	switch size {
	case 1, 2, 4, 8:
		return r.Uint(size)
	}
	if size <= 0 || size > 8 {
		return 0, malformed("unsupported integer width %d", size)
	}
	b, err := r.Bytes(size)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}
