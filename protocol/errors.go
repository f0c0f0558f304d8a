package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrTimeout            = errors.New("request timed out")
	ErrLinkLost           = errors.New("link lost")
	ErrCompressionFailure = errors.New("image compression failed")
	ErrDuplicateRequest   = errors.New("request with the same correlation key is already outstanding")
	ErrInvalidChunkSize   = errors.New("chunk size must be positive")
	ErrPayloadTooLarge    = errors.New("payload does not fit the length field")
	ErrClosed             = errors.New("dispatcher closed")
	ErrNotReady           = errors.New("link not ready")
	ErrQueueFull          = errors.New("request queue full")
	ErrUnsupportedFormat  = errors.New("unsupported image format")
)

// ErrorKind classifies device-reported flow control rejections.
type ErrorKind uint8

const (
	CmdError ErrorKind = iota + 1
	Overflow
	MissingConfigID
)

func (k ErrorKind) String() string {
	switch k {
	case CmdError:
		return "CMD_ERROR"
	case Overflow:
		return "OVERFLOW"
	case MissingConfigID:
		return "MISSING_CONFIG_ID"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// ProtocolError is a rejection reported by the device through flow control.
type ProtocolError struct {
	Kind ErrorKind
}

func (e *ProtocolError) Error() string {
	return "device rejected command: " + e.Kind.String()
}

// Is lets errors.Is match any ProtocolError of the same kind.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Kind == e.Kind
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedPayload, format, args...)
}
