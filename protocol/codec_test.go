package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderIntegers(t *testing.T) {
	r := NewReader([]byte{
		0xFE,
		0xFF, 0xFE,
		0x80, 0x00, 0x00, 0x01,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	})

	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xFE), u8)

	i16, err := r.Int16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000001), u32)

	u64, err := r.Uint(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 15, r.Offset())
}

func TestReadUintDoesNotSignExtend(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	for _, size := range []int{1, 2, 4} {
		u, err := ReadUint(buf, 0, size)
		require.NoError(t, err)
		assert.Equal(t, uint64(1)<<(8*uint(size))-1, u, "size %d", size)

		i, err := ReadInt(buf, 0, size)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), i, "size %d", size)
	}
}

func TestReadPastEnd(t *testing.T) {
	_, err := ReadUint([]byte{0x01}, 0, 2)
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	_, err = ReadUint([]byte{0x01, 0x02, 0x03}, 0, 3)
	assert.True(t, errors.Is(err, ErrMalformedPayload), "width 3 is not a codec width")

	r := NewReader([]byte{0x01})
	_, err = r.Uint16()
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	assert.Equal(t, 0, r.Offset(), "failed read must not advance")

	_, err = r.Bytes(2)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestReaderStrings(t *testing.T) {
	r := NewReader([]byte("Test\x00\x00rest"))
	s, err := r.String()
	require.NoError(t, err)
	assert.Equal(t, "Test", s)
	assert.Equal(t, 5, r.Offset())

	s, err = r.String()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = r.String()
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	assert.Equal(t, []byte("rest"), r.Rest())
}

func TestReaderBool(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01, 0x7F})
	for _, want := range []bool{false, true, true} {
		b, err := r.Bool()
		require.NoError(t, err)
		assert.Equal(t, want, b)
	}
}

func TestReadUintN(t *testing.T) {
	r := NewReader([]byte{0xFF, 0x00, 0x01, 0xAA})
	v, err := r.readUintN(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(16711681), v)

	_, err = r.readUintN(9)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
	assert.Equal(t, 1, r.Len(), "bad width must not consume")
}

func TestBuilderAppends(t *testing.T) {
	b := NewBuilder(OpText).
		Int16(-1).
		Uint16(0x0102).
		Rotation(RotationTopLR).
		Bool(true).
		Uint32(0xA0B0C0D0).
		String("hi").
		Raw([]byte{0xEE})
	assert.Equal(t, OpText, b.Opcode())
	assert.Equal(t, []byte{
		0xFF, 0xFF,
		0x01, 0x02,
		0x04,
		0x01,
		0xA0, 0xB0, 0xC0, 0xD0,
		'h', 'i', 0x00,
		0xEE,
	}, b.Payload())
}
