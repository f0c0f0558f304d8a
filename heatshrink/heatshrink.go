// Package heatshrink implements the LZSS bit stream decoded by the heatshrink
// library on the glasses firmware.
//
// Stream format, most significant bit first:
//
//	1 <8-bit literal>
//	0 <window bits: offset-1> <lookahead bits: length-1>
//
// The last byte is padded with zero bits.
package heatshrink

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Parameters the glasses decoder is built with.
const (
	WindowBits    = 8
	LookaheadBits = 4
)

var (
	ErrParameters = errors.New("invalid window/lookahead parameters")
	ErrCorrupt    = errors.New("corrupt heatshrink stream")
	ErrClosed     = errors.New("write to closed heatshrink writer")
)

func checkParams(window, lookahead int) error {
	if window < 4 || window > 15 || lookahead < 3 || lookahead >= window {
		return errors.Wrapf(ErrParameters, "window %d lookahead %d", window, lookahead)
	}
	return nil
}

// Writer compresses everything written to it and emits the stream on Close,
// since matching needs the bytes that follow the current position.
type Writer struct {
	w         io.Writer
	window    int
	lookahead int
	in        bytes.Buffer
	closed    bool
}

func NewWriter(w io.Writer, window, lookahead int) (*Writer, error) {
	if err := checkParams(window, lookahead); err != nil {
		return nil, err
	}
	return &Writer{w: w, window: window, lookahead: lookahead}, nil
}

func (hw *Writer) Write(p []byte) (int, error) {
	if hw.closed {
		return 0, ErrClosed
	}
	return hw.in.Write(p)
}

// Close compresses the buffered input and writes the stream out.
func (hw *Writer) Close() error {
	if hw.closed {
		return nil
	}
	hw.closed = true
	out := encode(hw.in.Bytes(), hw.window, hw.lookahead)
	if _, err := hw.w.Write(out); err != nil {
		return errors.Wrap(err, "heatshrink: write compressed stream")
	}
	return nil
}

// Compress is a convenience wrapper using the device parameters.
func Compress(b []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := NewWriter(&out, WindowBits, LookaheadBits)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encode(in []byte, window, lookahead int) []byte {
	var bw bitWriter
	maxOffset := 1 << uint(window)
	maxLen := 1 << uint(lookahead)
	// A back-reference costs 1+window+lookahead bits, a literal 9.
	breakEven := (1 + window + lookahead) / 8

	for pos := 0; pos < len(in); {
		limit := maxLen
		if rest := len(in) - pos; rest < limit {
			limit = rest
		}
		start := pos - maxOffset
		if start < 0 {
			start = 0
		}
		bestLen, bestOff := 0, 0
		for cand := pos - 1; cand >= start; cand-- {
			n := 0
			for n < limit && in[cand+n] == in[pos+n] {
				n++
			}
			if n > bestLen {
				bestLen, bestOff = n, pos-cand
				if n == limit {
					break
				}
			}
		}
		if bestLen > breakEven {
			bw.writeBits(0, 1)
			bw.writeBits(uint32(bestOff-1), window)
			bw.writeBits(uint32(bestLen-1), lookahead)
			pos += bestLen
			continue
		}
		bw.writeBits(1, 1)
		bw.writeBits(uint32(in[pos]), 8)
		pos++
	}
	return bw.flush()
}

// Decompress expands a stream produced with the same parameters.
func Decompress(b []byte, window, lookahead int) ([]byte, error) {
	if err := checkParams(window, lookahead); err != nil {
		return nil, err
	}
	br := bitReader{buf: b}
	out := make([]byte, 0, len(b)*2)
	for {
		if br.remaining() < 1 {
			break
		}
		tag := br.readBits(1)
		if tag == 1 {
			if br.remaining() < 8 {
				break
			}
			out = append(out, byte(br.readBits(8)))
			continue
		}
		if br.remaining() < window+lookahead {
			break
		}
		off := int(br.readBits(window)) + 1
		n := int(br.readBits(lookahead)) + 1
		if off > len(out) {
			return nil, errors.Wrapf(ErrCorrupt, "back-reference %d beyond %d decoded bytes", off, len(out))
		}
		for i := 0; i < n; i++ {
			out = append(out, out[len(out)-off])
		}
	}
	return out, nil
}

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | byte((v>>uint(i))&1)
		w.nbits++
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) flush() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, w.cur<<(8-w.nbits))
		w.cur, w.nbits = 0, 0
	}
	return w.buf
}

type bitReader struct {
	buf []byte
	pos int // in bits
}

func (r *bitReader) remaining() int {
	return len(r.buf)*8 - r.pos
}

func (r *bitReader) readBits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		bit := (r.buf[r.pos/8] >> (7 - uint(r.pos%8))) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v
}
