package heatshrink

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressLiteral(t *testing.T) {
	out, err := Compress([]byte{'A'})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA0, 0x80}, out)
}

func TestCompressRun(t *testing.T) {
	in := make([]byte, 20)
	out, err := Compress(in)
	require.NoError(t, err)
	// literal, then back-references of 16 and 3 bytes at offset 1
	assert.Len(t, out, 5)

	back, err := Decompress(out, WindowBits, LookaheadBits)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	noise := make([]byte, 2000)
	rnd.Read(noise)

	raster := make([]byte, 0, 4000)
	for i := 0; i < 100; i++ {
		raster = append(raster, bytes.Repeat([]byte{0x00}, 30)...)
		raster = append(raster, 0xFF, 0xF0, byte(i), 0x0F)
		raster = append(raster, bytes.Repeat([]byte{0x11}, 6)...)
	}

	for name, in := range map[string][]byte{
		"empty":  {},
		"noise":  noise,
		"raster": raster,
		"text":   []byte("abcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabc"),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Compress(in)
			require.NoError(t, err)
			back, err := Decompress(out, WindowBits, LookaheadBits)
			require.NoError(t, err)
			assert.Equal(t, len(in), len(back))
			assert.True(t, bytes.Equal(in, back))
		})
	}

	out, _ := Compress(raster)
	assert.Less(t, len(out), len(raster)/2)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 10, 5)
	require.NoError(t, err)
	in := bytes.Repeat([]byte("glasses "), 50)
	for i := 0; i < len(in); i += 7 {
		end := i + 7
		if end > len(in) {
			end = len(in)
		}
		_, err := w.Write(in[i:end])
		require.NoError(t, err)
	}
	assert.Zero(t, buf.Len(), "nothing is emitted before Close")
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte{0})
	assert.True(t, errors.Is(err, ErrClosed))

	back, err := Decompress(buf.Bytes(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriterPropagatesWriteError(t *testing.T) {
	w, err := NewWriter(failingWriter{}, WindowBits, LookaheadBits)
	require.NoError(t, err)
	w.Write([]byte("data"))
	err = w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestParameters(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, 3, 2)
	assert.True(t, errors.Is(err, ErrParameters))
	_, err = NewWriter(&bytes.Buffer{}, 8, 8)
	assert.True(t, errors.Is(err, ErrParameters))
	_, err = Decompress(nil, 16, 4)
	assert.True(t, errors.Is(err, ErrParameters))
}

func TestDecompressCorrupt(t *testing.T) {
	// back-reference with nothing decoded yet
	_, err := Decompress([]byte{0x00, 0x00}, WindowBits, LookaheadBits)
	assert.True(t, errors.Is(err, ErrCorrupt))
}
