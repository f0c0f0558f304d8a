// Package raster converts bitmaps into the packed monochrome rows the glasses display.
package raster

import (
	"image"

	"github.com/pkg/errors"
)

// Format is the packed pixel depth.
type Format uint8

const (
	Mono1bpp Format = 1
	Mono4bpp Format = 4
)

var ErrUnsupportedFormat = errors.New("unsupported raster format")

// PixelsPerByte returns how many pixels share one output byte.
func (f Format) PixelsPerByte() int {
	switch f {
	case Mono1bpp:
		return 8
	case Mono4bpp:
		return 2
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case Mono1bpp:
		return "MONO_1BPP"
	case Mono4bpp:
		return "MONO_4BPP"
	}
	return "UNKNOWN"
}

// Image is a packed raster, one slice of bytes per row.
type Image struct {
	Width  int
	Height int
	Format Format
	Rows   [][]byte
}

// RowBytes returns the packed size of one row.
func (img *Image) RowBytes() int {
	return rowBytes(img.Width, img.Format)
}

// Bytes returns rows concatenated in row-major order.
func (img *Image) Bytes() []byte {
	out := make([]byte, 0, img.RowBytes()*img.Height)
	for _, r := range img.Rows {
		out = append(out, r...)
	}
	return out
}

// Size returns the packed size in bytes.
func (img *Image) Size() int {
	return img.RowBytes() * img.Height
}

func rowBytes(width int, f Format) int {
	ppb := f.PixelsPerByte()
	return (width + ppb - 1) / ppb
}

// Luma weights an 8-bit RGB triple 0.299/0.587/0.114 and truncates.
func Luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

// Rasterize rotates src by 180 degrees, converts it to grey and packs it.
// 4bpp: level = grey/16, first pixel in the low nibble.
// 1bpp: any non-black pixel is set, first pixel in bit 0.
func Rasterize(src image.Image, f Format) (*Image, error) {
	ppb := f.PixelsPerByte()
	if ppb == 0 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %d", f)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := &Image{Width: w, Height: h, Format: f, Rows: make([][]byte, h)}
	rb := rowBytes(w, f)
	for y := 0; y < h; y++ {
		row := make([]byte, rb)
		sy := bounds.Max.Y - 1 - y
		for x := 0; x < w; x++ {
			sx := bounds.Max.X - 1 - x
			grey := greyAt(src, sx, sy)
			switch f {
			case Mono4bpp:
				level := grey / 16
				if x%2 == 0 {
					row[x/2] |= level
				} else {
					row[x/2] |= level << 4
				}
			case Mono1bpp:
				if grey > 0 {
					row[x/8] |= 1 << uint(x%8)
				}
			}
		}
		out.Rows[y] = row
	}
	return out, nil
}

func greyAt(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return Luma(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
