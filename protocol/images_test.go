package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImgSaveFormat(t *testing.T) {
	for in, want := range map[string]ImgSaveFormat{
		"4bpp":                           ImgSave4bpp,
		"1bpp":                           ImgSave1bpp,
		"4bpp-heatshrink":                ImgSave4bppHeatshrink,
		"4bpp-heatshrink-save-comp":      ImgSave4bppHeatshrinkSaveComp,
		"1BPP":                           ImgSave1bpp,
		"MONO_4BPP":                      ImgSave4bpp,
		"MONO_1BPP":                      ImgSave1bpp,
		"MONO_4BPP_HEATSHRINK":           ImgSave4bppHeatshrink,
		"MONO_4BPP_HEATSHRINK_SAVE_COMP": ImgSave4bppHeatshrinkSaveComp,
	} {
		got, err := ParseImgSaveFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "8bpp", "mono_1bpp_x"} {
		_, err := ParseImgSaveFormat(in)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), in)
	}
}
