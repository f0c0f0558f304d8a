package protocol

import "github.com/pkg/errors"

// Rotation is the text orientation inside a layout.
type Rotation uint8

const (
	RotationBottomRL Rotation = 0x00
	RotationBottomLR Rotation = 0x01
	RotationLeftBT   Rotation = 0x02
	RotationLeftTB   Rotation = 0x03
	RotationTopLR    Rotation = 0x04
	RotationTopRL    Rotation = 0x05
	RotationRightTB  Rotation = 0x06
	RotationRightBT  Rotation = 0x07

	// RotationUnknown is what unrecognized wire values decode to.
	RotationUnknown Rotation = 0xFF
)

// ParseRotation maps a wire byte to a Rotation, or RotationUnknown.
func ParseRotation(b byte) Rotation {
	if b <= byte(RotationRightBT) {
		return Rotation(b)
	}
	return RotationUnknown
}

func (r Rotation) String() string {
	switch r {
	case RotationBottomRL:
		return "BOTTOM_RL"
	case RotationBottomLR:
		return "BOTTOM_LR"
	case RotationLeftBT:
		return "LEFT_BT"
	case RotationLeftTB:
		return "LEFT_TB"
	case RotationTopLR:
		return "TOP_LR"
	case RotationTopRL:
		return "TOP_RL"
	case RotationRightTB:
		return "RIGHT_TB"
	case RotationRightBT:
		return "RIGHT_BT"
	}
	return "UNKNOWN"
}

// Layout sub-command tags.
const (
	tagBitmap byte = 0x00
	tagCirc   byte = 0x01
	tagCircf  byte = 0x02
	tagColor  byte = 0x03
	tagFont   byte = 0x04
	tagLine   byte = 0x05
	tagPoint  byte = 0x06
	tagRect   byte = 0x07
	tagRectf  byte = 0x08
	tagText   byte = 0x09
	tagGauge  byte = 0x0A
)

// LayoutCommand is a drawing step stored with a layout.
type LayoutCommand interface {
	encodeTo(b *Builder)
}

type LayoutBitmap struct {
	ID   uint8
	X, Y int16
}

type LayoutCircle struct {
	X, Y   int16
	R      uint16
	Filled bool
}

type LayoutColor struct {
	C uint8
}

type LayoutFont struct {
	F uint8
}

type LayoutLine struct {
	X1, Y1, X2, Y2 int16
}

type LayoutPoint struct {
	X, Y int16
}

type LayoutRect struct {
	X1, Y1, X2, Y2 int16
	Filled         bool
}

type LayoutText struct {
	X, Y int16
	Text string
}

type LayoutGauge struct {
	GaugeID uint8
}

func (c LayoutBitmap) encodeTo(b *Builder) {
	b.Byte(tagBitmap).Uint8(c.ID).Int16(c.X).Int16(c.Y)
}

func (c LayoutCircle) encodeTo(b *Builder) {
	tag := tagCirc
	if c.Filled {
		tag = tagCircf
	}
	b.Byte(tag).Int16(c.X).Int16(c.Y).Uint16(c.R)
}

func (c LayoutColor) encodeTo(b *Builder) {
	b.Byte(tagColor).Uint8(c.C)
}

func (c LayoutFont) encodeTo(b *Builder) {
	b.Byte(tagFont).Uint8(c.F)
}

func (c LayoutLine) encodeTo(b *Builder) {
	b.Byte(tagLine).Int16(c.X1).Int16(c.Y1).Int16(c.X2).Int16(c.Y2)
}

func (c LayoutPoint) encodeTo(b *Builder) {
	b.Byte(tagPoint).Int16(c.X).Int16(c.Y)
}

func (c LayoutRect) encodeTo(b *Builder) {
	tag := tagRect
	if c.Filled {
		tag = tagRectf
	}
	b.Byte(tag).Int16(c.X1).Int16(c.Y1).Int16(c.X2).Int16(c.Y2)
}

func (c LayoutText) encodeTo(b *Builder) {
	b.Byte(tagText).Int16(c.X).Int16(c.Y).Uint8(uint8(len(c.Text))).Raw([]byte(c.Text))
}

func (c LayoutGauge) encodeTo(b *Builder) {
	b.Byte(tagGauge).Uint8(c.GaugeID)
}

// EncodeLayoutCommands serializes sub-commands into the layout's sub-command block.
func EncodeLayoutCommands(cmds []LayoutCommand) []byte {
	b := NewBuilder(OpLayoutSave)
	for _, c := range cmds {
		c.encodeTo(b)
	}
	return b.Payload()
}

// DecodeLayoutCommands parses a sub-command block.
func DecodeLayoutCommands(block []byte) ([]LayoutCommand, error) {
	r := NewReader(block)
	var cmds []LayoutCommand
	for r.Len() > 0 {
		tag, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		c, err := decodeLayoutCommand(tag, r)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

func decodeLayoutCommand(tag byte, r *Reader) (LayoutCommand, error) {
	ints := func(n int) ([]int16, error) {
		vs := make([]int16, n)
		for i := range vs {
			v, err := r.Int16()
			if err != nil {
				return nil, err
			}
			vs[i] = v
		}
		return vs, nil
	}
	switch tag {
	case tagBitmap:
		id, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		xy, err := ints(2)
		if err != nil {
			return nil, err
		}
		return LayoutBitmap{ID: id, X: xy[0], Y: xy[1]}, nil
	case tagCirc, tagCircf:
		xy, err := ints(2)
		if err != nil {
			return nil, err
		}
		rad, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		return LayoutCircle{X: xy[0], Y: xy[1], R: rad, Filled: tag == tagCircf}, nil
	case tagColor:
		c, err := r.Uint8()
		return LayoutColor{C: c}, err
	case tagFont:
		f, err := r.Uint8()
		return LayoutFont{F: f}, err
	case tagLine:
		v, err := ints(4)
		if err != nil {
			return nil, err
		}
		return LayoutLine{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
	case tagPoint:
		xy, err := ints(2)
		if err != nil {
			return nil, err
		}
		return LayoutPoint{X: xy[0], Y: xy[1]}, nil
	case tagRect, tagRectf:
		v, err := ints(4)
		if err != nil {
			return nil, err
		}
		return LayoutRect{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], Filled: tag == tagRectf}, nil
	case tagText:
		xy, err := ints(2)
		if err != nil {
			return nil, err
		}
		n, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		s, err := r.Bytes(int(n))
		if err != nil {
			return nil, err
		}
		return LayoutText{X: xy[0], Y: xy[1], Text: string(s)}, nil
	case tagGauge:
		id, err := r.Uint8()
		return LayoutGauge{GaugeID: id}, err
	}
	return nil, malformed("unknown layout sub-command 0x%02X at offset %d", tag, r.Offset()-1)
}

// LayoutParameters is a saved layout: a text area plus drawing sub-commands.
type LayoutParameters struct {
	ID          uint8
	X           uint16
	Y           uint8
	Width       uint16
	Height      uint8
	ForeColor   uint8
	BackColor   uint8
	Font        uint8
	TextValid   bool
	TextX       uint16
	TextY       uint8
	Rotation    Rotation
	TextOpacity bool
	Commands    []LayoutCommand
}

func DecodeLayoutParameters(b []byte) (LayoutParameters, error) {
	r := NewReader(b)
	v, err := layoutParametersLayout.decode(r)
	if err != nil {
		return LayoutParameters{}, err
	}
	sub, err := r.Bytes(int(v[1]))
	if err != nil {
		return LayoutParameters{}, err
	}
	if r.Len() != 0 {
		return LayoutParameters{}, malformed("%d trailing bytes after layout %d", r.Len(), v[0])
	}
	cmds, err := DecodeLayoutCommands(sub)
	if err != nil {
		return LayoutParameters{}, err
	}
	return LayoutParameters{
		ID:          uint8(v[0]),
		X:           uint16(v[2]),
		Y:           uint8(v[3]),
		Width:       uint16(v[4]),
		Height:      uint8(v[5]),
		ForeColor:   uint8(v[6]),
		BackColor:   uint8(v[7]),
		Font:        uint8(v[8]),
		TextValid:   v[9] != 0,
		TextX:       uint16(v[10]),
		TextY:       uint8(v[11]),
		Rotation:    ParseRotation(byte(v[12])),
		TextOpacity: v[13] != 0,
		Commands:    cmds,
	}, nil
}

func (l LayoutParameters) encodeTo(b *Builder) error {
	sub := EncodeLayoutCommands(l.Commands)
	if len(sub) > 0xFF {
		return errors.Wrapf(ErrPayloadTooLarge, "layout %d: %d bytes of sub-commands", l.ID, len(sub))
	}
	layoutParametersLayout.encode(b, int64(l.ID), int64(len(sub)), int64(l.X), int64(l.Y),
		int64(l.Width), int64(l.Height), int64(l.ForeColor), int64(l.BackColor), int64(l.Font),
		b2i(l.TextValid), int64(l.TextX), int64(l.TextY), int64(l.Rotation), b2i(l.TextOpacity))
	b.Raw(sub)
	return nil
}

func (l LayoutParameters) Encode() ([]byte, error) {
	b := NewBuilder(OpLayoutSave)
	if err := l.encodeTo(b); err != nil {
		return nil, err
	}
	return b.Payload(), nil
}
