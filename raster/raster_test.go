package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grey(w, h int, px map[image.Point]uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for p, v := range px {
		img.SetGray(p.X, p.Y, color.Gray{Y: v})
	}
	return img
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(255), Luma(255, 255, 255))
	assert.Equal(t, uint8(0), Luma(0, 0, 0))
	assert.Equal(t, uint8(76), Luma(255, 0, 0))
	assert.Equal(t, uint8(149), Luma(0, 255, 0))
	assert.Equal(t, uint8(29), Luma(0, 0, 255))
}

func TestRasterize1bppRowBoundary(t *testing.T) {
	// Source pixel 0 ends up as output pixel 8 after the half turn.
	img, err := Rasterize(grey(9, 1, map[image.Point]uint8{{0, 0}: 1}), Mono1bpp)
	require.NoError(t, err)
	assert.Equal(t, 2, img.RowBytes())
	assert.Equal(t, []byte{0x00, 0x01}, img.Bytes())
}

func TestRasterize1bppColumn(t *testing.T) {
	px := map[image.Point]uint8{}
	for y := 0; y < 9; y++ {
		px[image.Point{0, y}] = 200
	}
	img, err := Rasterize(grey(1, 9, px), Mono1bpp)
	require.NoError(t, err)
	assert.Equal(t, 1, img.RowBytes())
	assert.Equal(t, 9, img.Size())
	for _, b := range img.Bytes() {
		assert.Equal(t, byte(0x01), b)
	}
}

func TestRasterize1bppBitOrder(t *testing.T) {
	// Output pixels 0 and 3 are source pixels 7 and 4.
	img, err := Rasterize(grey(8, 1, map[image.Point]uint8{{7, 0}: 10, {4, 0}: 255}), Mono1bpp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09}, img.Bytes())
}

func TestRasterize4bppOddWidth(t *testing.T) {
	img, err := Rasterize(grey(3, 2, map[image.Point]uint8{
		{0, 0}: 0xFF, // out (2,1)
		{2, 1}: 0x20, // out (0,0)
		{1, 1}: 0x9F, // out (1,0)
	}), Mono4bpp)
	require.NoError(t, err)
	assert.Equal(t, 2, img.RowBytes())
	require.Len(t, img.Rows, 2)
	assert.Equal(t, []byte{0x92, 0x00}, img.Rows[0])
	assert.Equal(t, []byte{0x00, 0x0F}, img.Rows[1])
	assert.Equal(t, 3, img.Width)
}

func TestRasterizeOffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(10, 20, 12, 21))
	src.SetGray(10, 20, color.Gray{Y: 0xFF})
	img, err := Rasterize(src, Mono4bpp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF0}, img.Bytes())
}

func TestRasterizeUnsupported(t *testing.T) {
	_, err := Rasterize(grey(1, 1, nil), Format(2))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
