package protocol

import (
	"fmt"
	"time"
)

// Correlation selects how a response is matched to the request that caused it.
type Correlation uint8

const (
	// NoResponse commands complete when their last frame is written.
	NoResponse Correlation = iota
	// ByOpcode responses carry the request opcode and nothing else to match on.
	ByOpcode
	// ByQueryID requests and responses start their payload with a [len][bytes] QueryID.
	ByQueryID
	// ByName requests and responses start their payload with a NUL-terminated name.
	ByName
)

func (c Correlation) String() string {
	switch c {
	case NoResponse:
		return "none"
	case ByOpcode:
		return "opcode"
	case ByQueryID:
		return "queryId"
	case ByName:
		return "name"
	}
	return fmt.Sprintf("Correlation(%d)", uint8(c))
}

// responsePolicy lists every command the device answers and how the answer is matched.
// Commands missing here get no response.
var responsePolicy = map[Opcode]Correlation{
	OpBattery:        ByOpcode,
	OpVersion:        ByOpcode,
	OpSettings:       ByOpcode,
	OpSensorParamGet: ByOpcode,
	OpImgList:        ByOpcode,
	OpFontList:       ByOpcode,
	OpLayoutList:     ByOpcode,
	OpLayoutGet:      ByOpcode,
	OpGaugeList:      ByOpcode,
	OpGaugeGet:       ByOpcode,
	OpPageList:       ByOpcode,
	OpPageGet:        ByOpcode,
	OpRConfigID:      ByOpcode,
	OpCfgRead:        ByName,
	OpCfgList:        ByQueryID,
	OpCfgFreeSpace:   ByQueryID,
	OpCfgGetNb:       ByQueryID,
}

// CorrelationOf returns how responses to op are matched.
func CorrelationOf(op Opcode) Correlation {
	return responsePolicy[op]
}

type decodeFunc func(payload []byte) (Response, error)

// Command is one request: the frames to write and how to recognize and decode the answer.
type Command struct {
	Op          Opcode
	Correlation Correlation
	// Name is the correlation key of ByName commands.
	Name string
	// Timeout overrides the dispatcher default when non-zero.
	Timeout time.Duration

	frames func(q QueryID, mtu int) ([]Frame, error)
	decode decodeFunc
	// transfer marks multi-frame uploads, bounded by Config.TransferTimeout.
	transfer bool
}

// NewCommand wraps a single frame. The correlation comes from the command table.
func NewCommand(op Opcode, payload []byte, decode func([]byte) (Response, error)) *Command {
	return &Command{
		Op:          op,
		Correlation: CorrelationOf(op),
		frames: func(QueryID, int) ([]Frame, error) {
			return []Frame{{Opcode: op, Payload: payload}}, nil
		},
		decode: decode,
	}
}

func (c *Command) String() string {
	if c.Correlation == ByName {
		return fmt.Sprintf("%v(%q)", c.Op, c.Name)
	}
	return c.Op.String()
}

// correlationKey identifies an outstanding request. At most one request per key
// may be queued or in flight.
func correlationKey(op Opcode, c Correlation, q QueryID, name string, seq uint64) string {
	switch c {
	case ByOpcode:
		return fmt.Sprintf("op:%02x", byte(op))
	case ByQueryID:
		return fmt.Sprintf("op:%02x/q:%s", byte(op), q)
	case ByName:
		return fmt.Sprintf("op:%02x/n:%s", byte(op), name)
	}
	return fmt.Sprintf("seq:%d", seq)
}

// frameCorrelation extracts the correlation key of a response frame and the
// payload left after the correlation prefix.
func frameCorrelation(f Frame) (key string, body []byte, err error) {
	c := CorrelationOf(f.Opcode)
	r := NewReader(f.Payload)
	switch c {
	case ByQueryID:
		q, err := readQueryID(r)
		if err != nil {
			return "", nil, err
		}
		return correlationKey(f.Opcode, c, q, "", 0), r.Rest(), nil
	case ByName:
		name, err := r.String()
		if err != nil {
			return "", nil, err
		}
		return correlationKey(f.Opcode, c, QueryID{}, name, 0), r.Rest(), nil
	case ByOpcode:
		return correlationKey(f.Opcode, c, QueryID{}, "", 0), f.Payload, nil
	}
	return "", nil, malformed("%v is not a response", f.Opcode)
}

type requestState uint8

const (
	stateCreated requestState = iota
	stateQueued
	stateSent
	stateResolved
	stateFailed
	stateTimedOut
)

func (s requestState) terminal() bool {
	return s >= stateResolved
}

type request struct {
	cmd       *Command
	key       string
	frames    []Frame
	call      *Call
	state     requestState
	cancelled bool
	done      chan struct{}
}

// Call is an asynchronous request. Done receives the call itself once Reply or
// Error is set.
type Call struct {
	Command *Command
	Reply   Response
	Error   error
	Done    chan *Call

	req *request
}
