package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestSliceReassembles(t *testing.T) {
	for _, n := range []int{1, 7, 64, 100, 513} {
		for _, block := range []int{0, 1, 10, 32, 1000} {
			for _, chunk := range []int{1, 3, 20, 64} {
				buf := seqBytes(n)
				blocks, err := Slice(buf, block, chunk)
				require.NoError(t, err)

				effBlock := block
				if effBlock < chunk {
					effBlock = chunk
				}
				if effBlock > n {
					effBlock = n
				}
				effChunk := chunk
				if effChunk > effBlock {
					effChunk = effBlock
				}

				var joined []byte
				for bi, b := range blocks {
					if bi < len(blocks)-1 {
						assert.Equal(t, effBlock, b.Size)
					}
					size := 0
					for ci, c := range b.Chunks {
						if ci < len(b.Chunks)-1 {
							assert.Len(t, c, effChunk)
						}
						size += len(c)
						joined = append(joined, c...)
					}
					assert.Equal(t, b.Size, size)
				}
				assert.Equal(t, buf, joined, "n=%d block=%d chunk=%d", n, block, chunk)
			}
		}
	}
}

func TestSliceShapes(t *testing.T) {
	blocks, err := Slice(seqBytes(10), 4, 3)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, 4, blocks[0].Size)
	assert.Equal(t, [][]byte{{0, 1, 2}, {3}}, blocks[0].Chunks)
	assert.Equal(t, [][]byte{{8, 9}}, blocks[2].Chunks)

	blocks, err = Slice(nil, 4, 3)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	_, err = Slice(seqBytes(4), 4, 0)
	assert.True(t, errors.Is(err, ErrInvalidChunkSize))
}

func TestSplitTrims(t *testing.T) {
	chunks, err := Split(seqBytes(5), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0, 1}, {2, 3}, {4}}, chunks)

	// Appending to a chunk must not clobber its neighbour.
	_ = append(chunks[0], 0xFF)
	assert.Equal(t, byte(2), chunks[1][0])

	_, err = Split(seqBytes(5), -1)
	assert.True(t, errors.Is(err, ErrInvalidChunkSize))
}

func TestFirmwareChecksum(t *testing.T) {
	fw := NewFirmware([]byte{0x01, 0x02, 0x04})
	assert.Equal(t, byte(0x07), fw.Checksum())
	assert.Equal(t, []byte{0x01, 0x02, 0x04, 0x07}, fw.Bytes())
	assert.Equal(t, 4, fw.Size())

	blocks, err := fw.Blocks(2, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, [][]byte{{0x04}, {0x07}}, blocks[1].Chunks)
}
