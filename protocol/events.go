package protocol

import "fmt"

// FlowControlStatus is the value of a flow control notification.
type FlowControlStatus uint8

const (
	FlowOn              FlowControlStatus = 0x01
	FlowOff             FlowControlStatus = 0x02
	FlowCmdError        FlowControlStatus = 0x03
	FlowOverflow        FlowControlStatus = 0x04
	FlowMissingConfigID FlowControlStatus = 0x06
)

func (s FlowControlStatus) String() string {
	switch s {
	case FlowOn:
		return "ON"
	case FlowOff:
		return "OFF"
	case FlowCmdError:
		return "CMD_ERROR"
	case FlowOverflow:
		return "OVERFLOW"
	case FlowMissingConfigID:
		return "MISSING_CONFIG_ID"
	}
	return fmt.Sprintf("FlowControlStatus(0x%02X)", uint8(s))
}

// errorKind maps rejection statuses to ErrorKind; ok is false for ON/OFF.
func (s FlowControlStatus) errorKind() (ErrorKind, bool) {
	switch s {
	case FlowCmdError:
		return CmdError, true
	case FlowOverflow:
		return Overflow, true
	case FlowMissingConfigID:
		return MissingConfigID, true
	}
	return 0, false
}

// SensorEventType identifies the sensor behind a SensorEvent.
type SensorEventType uint8

const (
	SensorGesture SensorEventType = 0x01
	SensorAls     SensorEventType = 0x02
	SensorTouch   SensorEventType = 0x03
)

// Event is an unsolicited notification or a link state change delivered to subscribers.
type Event interface {
	isEvent()
}

type FlowControlEvent struct {
	Status FlowControlStatus
}

type BatteryEvent struct {
	Level uint8
}

type SensorEvent struct {
	Type  SensorEventType
	Value uint16
}

// LinkHealthEvent reports a device rejection that no request was waiting for.
type LinkHealthEvent struct {
	Err error
}

type DisconnectedEvent struct {
	Err error
}

func (FlowControlEvent) isEvent()  {}
func (BatteryEvent) isEvent()      {}
func (SensorEvent) isEvent()       {}
func (LinkHealthEvent) isEvent()   {}
func (DisconnectedEvent) isEvent() {}

// DecodeEvent parses an unsolicited frame.
func DecodeEvent(f Frame) (Event, error) {
	r := NewReader(f.Payload)
	switch f.Opcode {
	case OpFlowControl:
		s, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		return FlowControlEvent{Status: FlowControlStatus(s)}, nil
	case OpBatteryNotify:
		l, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		if l > 100 {
			return nil, malformed("battery level %d", l)
		}
		return BatteryEvent{Level: l}, nil
	case OpSensorEvent:
		t, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		var v uint16
		if r.Len() > 0 {
			if v, err = r.Uint16(); err != nil {
				return nil, err
			}
		}
		return SensorEvent{Type: SensorEventType(t), Value: v}, nil
	}
	return nil, malformed("%v is not an event", f.Opcode)
}
