package protocol

import "github.com/pkg/errors"

// Block is one staged-transfer window and the chunks it is sent in.
type Block struct {
	Size   int
	Chunks [][]byte
}

// Slice cuts buf into blocks of blockSize, each cut into chunks of chunkSize.
// blockSize is clamped to [chunkSize, len(buf)] and chunkSize to blockSize. The last
// chunk of a block and the last block may be short; nothing is padded.
// Chunks alias buf.
func Slice(buf []byte, blockSize, chunkSize int) ([]Block, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "chunk size %d", chunkSize)
	}
	if len(buf) == 0 {
		return nil, nil
	}
	if blockSize < chunkSize {
		blockSize = chunkSize
	}
	if blockSize > len(buf) {
		blockSize = len(buf)
	}
	if chunkSize > blockSize {
		chunkSize = blockSize
	}

	blocks := make([]Block, 0, (len(buf)+blockSize-1)/blockSize)
	for start := 0; start < len(buf); start += blockSize {
		end := start + blockSize
		if end > len(buf) {
			end = len(buf)
		}
		chunks, _ := Split(buf[start:end], chunkSize)
		blocks = append(blocks, Block{Size: end - start, Chunks: chunks})
	}
	return blocks, nil
}

// Split cuts source into chunkSize pieces; the last one is trimmed, not padded.
func Split(source []byte, chunkSize int) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "chunk size %d", chunkSize)
	}
	chunks := make([][]byte, 0, (len(source)+chunkSize-1)/chunkSize)
	for start := 0; start < len(source); start += chunkSize {
		end := start + chunkSize
		if end > len(source) {
			end = len(source)
		}
		chunks = append(chunks, source[start:end:end])
	}
	return chunks, nil
}

// Firmware is an update image with its trailing XOR checksum byte, ready for SUOTA slicing.
type Firmware struct {
	bytes []byte
}

func NewFirmware(image []byte) *Firmware {
	b := make([]byte, 0, len(image)+1)
	b = append(b, image...)
	b = append(b, Checksum(image))
	return &Firmware{bytes: b}
}

// Bytes returns the image followed by its checksum byte.
func (f *Firmware) Bytes() []byte {
	return f.bytes
}

func (f *Firmware) Size() int {
	return len(f.bytes)
}

func (f *Firmware) Checksum() byte {
	return f.bytes[len(f.bytes)-1]
}

func (f *Firmware) Blocks(blockSize, chunkSize int) ([]Block, error) {
	return Slice(f.bytes, blockSize, chunkSize)
}
