package protocol

import (
	"bytes"
	"encoding/hex"
)

// MaxQueryIDLen is the longest query id before the sequence restarts.
const MaxQueryIDLen = 15

// QueryID correlates a request with its response. It is an unsigned big-endian
// counter that grows by one byte when it overflows. Values are immutable.
type QueryID struct {
	b []byte
}

func InitialQueryID() QueryID {
	return QueryID{b: []byte{0x01}}
}

// NewQueryID copies b into a QueryID.
func NewQueryID(b []byte) QueryID {
	return QueryID{b: append([]byte(nil), b...)}
}

// Next returns the following id. On overflow a zero byte is prepended before the
// carry; an id that would grow beyond MaxQueryIDLen restarts at [0x01].
func (q QueryID) Next() QueryID {
	next := append([]byte(nil), q.b...)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			return QueryID{b: next}
		}
	}
	if len(next) >= MaxQueryIDLen {
		return InitialQueryID()
	}
	grown := make([]byte, len(next)+1)
	grown[0] = 0x01
	return QueryID{b: grown}
}

// Bytes returns a copy of the id.
func (q QueryID) Bytes() []byte {
	return append([]byte(nil), q.b...)
}

func (q QueryID) Len() int {
	return len(q.b)
}

func (q QueryID) Equal(o QueryID) bool {
	return bytes.Equal(q.b, o.b)
}

// Key returns the id as a comparable map key.
func (q QueryID) Key() string {
	return string(q.b)
}

func (q QueryID) String() string {
	return hex.EncodeToString(q.b)
}

// readQueryID reads a [len][bytes] correlation token.
func readQueryID(r *Reader) (QueryID, error) {
	n, err := r.Uint8()
	if err != nil {
		return QueryID{}, err
	}
	if n == 0 || n > MaxQueryIDLen {
		return QueryID{}, malformed("query id length %d", n)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return QueryID{}, err
	}
	return NewQueryID(b), nil
}
