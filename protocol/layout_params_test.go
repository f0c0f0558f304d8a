package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutParametersRoundTrip(t *testing.T) {
	l := LayoutParameters{
		ID:          10,
		X:           30,
		Y:           40,
		Width:       244,
		Height:      50,
		ForeColor:   15,
		BackColor:   0,
		Font:        2,
		TextValid:   true,
		TextX:       230,
		TextY:       45,
		Rotation:    RotationTopLR,
		TextOpacity: true,
		Commands: []LayoutCommand{
			LayoutBitmap{ID: 1, X: -4, Y: 5},
			LayoutCircle{X: 10, Y: 20, R: 5},
			LayoutCircle{X: 10, Y: 20, R: 6, Filled: true},
			LayoutColor{C: 7},
			LayoutFont{F: 1},
			LayoutLine{X1: 0, Y1: 1, X2: 2, Y2: 3},
			LayoutPoint{X: 9, Y: -9},
			LayoutRect{X1: 1, Y1: 2, X2: 3, Y2: 4},
			LayoutRect{X1: 1, Y1: 2, X2: 3, Y2: 4, Filled: true},
			LayoutText{X: 5, Y: 6, Text: "hi"},
			LayoutGauge{GaugeID: 3},
		},
	}
	raw, err := l.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(len(raw)-layoutParametersLayout.Size()), raw[1], "sub-command length byte")

	got, err := DecodeLayoutParameters(raw)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestLayoutParametersWithoutCommands(t *testing.T) {
	l := LayoutParameters{ID: 1, Width: 10, Height: 10, Rotation: RotationBottomRL}
	raw, err := l.Encode()
	require.NoError(t, err)
	assert.Len(t, raw, layoutParametersLayout.Size())

	got, err := DecodeLayoutParameters(raw)
	require.NoError(t, err)
	assert.Nil(t, got.Commands)
	assert.Equal(t, l, got)
}

func TestLayoutParametersMalformed(t *testing.T) {
	l := LayoutParameters{ID: 1, Commands: []LayoutCommand{LayoutColor{C: 1}}}
	raw, err := l.Encode()
	require.NoError(t, err)

	_, err = DecodeLayoutParameters(raw[:len(raw)-1])
	assert.True(t, errors.Is(err, ErrMalformedPayload), "short sub-command block")

	_, err = DecodeLayoutParameters(append(raw, 0x00))
	assert.True(t, errors.Is(err, ErrMalformedPayload), "trailing bytes")

	_, err = DecodeLayoutCommands([]byte{0x0B})
	assert.True(t, errors.Is(err, ErrMalformedPayload), "unknown tag")

	_, err = DecodeLayoutCommands([]byte{tagText, 0x00, 0x01, 0x00, 0x02, 0x05, 'a'})
	assert.True(t, errors.Is(err, ErrMalformedPayload), "text shorter than its length")

	long := LayoutParameters{Commands: []LayoutCommand{LayoutText{Text: string(make([]byte, 250))}}}
	_, err = long.Encode()
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestRotationUnknown(t *testing.T) {
	l := LayoutParameters{ID: 1, Rotation: RotationRightBT}
	raw, err := l.Encode()
	require.NoError(t, err)
	raw[15] = 0x09

	got, err := DecodeLayoutParameters(raw)
	require.NoError(t, err)
	assert.Equal(t, RotationUnknown, got.Rotation)
	assert.Equal(t, "UNKNOWN", got.Rotation.String())
	assert.Equal(t, "RIGHT_BT", ParseRotation(0x07).String())
}
