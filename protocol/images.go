package protocol

import (
	"fmt"
	"image"
	"strings"

	"github.com/RoanBrand/ActiveLookProtocol/heatshrink"
	"github.com/RoanBrand/ActiveLookProtocol/raster"
	"github.com/pkg/errors"
)

// ImgSaveFormat is the storage format requested by an image save.
type ImgSaveFormat uint8

const (
	ImgSave4bpp                   ImgSaveFormat = 0x00
	ImgSave1bpp                   ImgSaveFormat = 0x01
	ImgSave4bppHeatshrink         ImgSaveFormat = 0x02
	ImgSave4bppHeatshrinkSaveComp ImgSaveFormat = 0x03
)

func (f ImgSaveFormat) String() string {
	switch f {
	case ImgSave4bpp:
		return "MONO_4BPP"
	case ImgSave1bpp:
		return "MONO_1BPP"
	case ImgSave4bppHeatshrink:
		return "MONO_4BPP_HEATSHRINK"
	case ImgSave4bppHeatshrinkSaveComp:
		return "MONO_4BPP_HEATSHRINK_SAVE_COMP"
	}
	return fmt.Sprintf("ImgSaveFormat(%d)", uint8(f))
}

func (f ImgSaveFormat) raster() raster.Format {
	if f == ImgSave1bpp {
		return raster.Mono1bpp
	}
	return raster.Mono4bpp
}

func (f ImgSaveFormat) compressed() bool {
	return f == ImgSave4bppHeatshrink || f == ImgSave4bppHeatshrinkSaveComp
}

var imgSaveFormatNames = map[string]ImgSaveFormat{
	"4bpp":                      ImgSave4bpp,
	"1bpp":                      ImgSave1bpp,
	"4bpp-heatshrink":           ImgSave4bppHeatshrink,
	"4bpp-heatshrink-save-comp": ImgSave4bppHeatshrinkSaveComp,
}

// ParseImgSaveFormat accepts the names printed by String and the short command
// line spellings (4bpp, 1bpp, 4bpp-heatshrink, 4bpp-heatshrink-save-comp).
func ParseImgSaveFormat(s string) (ImgSaveFormat, error) {
	if f, ok := imgSaveFormatNames[strings.ToLower(s)]; ok {
		return f, nil
	}
	for f := ImgSave4bpp; f <= ImgSave4bppHeatshrinkSaveComp; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedFormat, "save format %q", s)
}

// ImgStreamFormat is the format of an image displayed without being stored.
type ImgStreamFormat uint8

const (
	ImgStream1bpp           ImgStreamFormat = 0x01
	ImgStream4bppHeatshrink ImgStreamFormat = 0x02
)

func (f ImgStreamFormat) String() string {
	switch f {
	case ImgStream1bpp:
		return "MONO_1BPP"
	case ImgStream4bppHeatshrink:
		return "MONO_4BPP_HEATSHRINK"
	}
	return fmt.Sprintf("ImgStreamFormat(%d)", uint8(f))
}

func (f ImgStreamFormat) saveFormat() (ImgSaveFormat, error) {
	switch f {
	case ImgStream1bpp:
		return ImgSave1bpp, nil
	case ImgStream4bppHeatshrink:
		return ImgSave4bppHeatshrink, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedFormat, "%v", f)
}

// ImageData is a rasterized image ready for transfer. Size is the packed raster size
// before compression; the device allocates storage from it. For the 1bpp format this
// is also the 1bpp record: Height is kept and Data is the packed rows.
type ImageData struct {
	Format ImgSaveFormat
	Width  uint16
	Height uint16
	Size   uint32
	Data   []byte
}

// Compressed reports whether Data is heatshrink output.
func (d ImageData) Compressed() bool {
	return d.Format.compressed()
}

// NewImageData rasterizes img and compresses it when the format asks for it.
func NewImageData(img image.Image, f ImgSaveFormat) (ImageData, error) {
	if f > ImgSave4bppHeatshrinkSaveComp {
		return ImageData{}, errors.Wrapf(ErrUnsupportedFormat, "%v", f)
	}
	r, err := raster.Rasterize(img, f.raster())
	if err != nil {
		return ImageData{}, errors.Wrap(ErrUnsupportedFormat, err.Error())
	}
	if r.Width > 0xFFFF || r.Height > 0xFFFF {
		return ImageData{}, errors.Wrapf(ErrPayloadTooLarge, "image %dx%d", r.Width, r.Height)
	}
	d := ImageData{
		Format: f,
		Width:  uint16(r.Width),
		Height: uint16(r.Height),
		Size:   uint32(r.Size()),
		Data:   r.Bytes(),
	}
	if f.compressed() {
		c, err := heatshrink.Compress(d.Data)
		if err != nil {
			return ImageData{}, errors.Wrap(ErrCompressionFailure, err.Error())
		}
		d.Data = c
	}
	return d, nil
}

// NewImage1bppData is NewImageData for the 1bpp format.
func NewImage1bppData(img image.Image) (ImageData, error) {
	return NewImageData(img, ImgSave1bpp)
}

// dataFrames cuts data into frames of op that each fit one link write.
func dataFrames(op Opcode, data []byte, mtu int) ([]Frame, error) {
	chunks, err := Split(data, maxChunk(mtu, op))
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(chunks))
	for _, c := range chunks {
		frames = append(frames, Frame{Opcode: op, Payload: c})
	}
	return frames, nil
}

// saveImageCommand stores d under id: a header frame then the data frames.
func saveImageCommand(id uint8, d ImageData) *Command {
	return &Command{
		Op:       OpImgSave,
		transfer: true,
		frames: func(_ QueryID, mtu int) ([]Frame, error) {
			b := NewBuilder(OpImgSave).Uint8(id).Uint32(d.Size).Uint16(d.Width).Uint8(uint8(d.Format))
			if d.Compressed() {
				b.Uint32(uint32(len(d.Data)))
			}
			data, err := dataFrames(OpImgSave, d.Data, mtu)
			if err != nil {
				return nil, err
			}
			return append([]Frame{b.Frame()}, data...), nil
		},
	}
}

// streamImageCommand displays d at x, y without storing it.
func streamImageCommand(d ImageData, x, y int16) (*Command, error) {
	if d.Format != ImgSave1bpp && d.Format != ImgSave4bppHeatshrink {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%v cannot be streamed", d.Format)
	}
	f := ImgStream1bpp
	if d.Compressed() {
		f = ImgStream4bppHeatshrink
	}
	return &Command{
		Op:       OpImgStream,
		transfer: true,
		frames: func(_ QueryID, mtu int) ([]Frame, error) {
			b := NewBuilder(OpImgStream).Uint32(d.Size).Uint16(d.Width).Int16(x).Int16(y).Uint8(uint8(f))
			if d.Compressed() {
				b.Uint32(uint32(len(d.Data)))
			}
			data, err := dataFrames(OpImgStream, d.Data, mtu)
			if err != nil {
				return nil, err
			}
			return append([]Frame{b.Frame()}, data...), nil
		},
	}, nil
}

// saveFontCommand uploads a font bitmap under id.
func saveFontCommand(id uint8, f FontData) (*Command, error) {
	payload := f.Encode()
	if len(payload) > 0xFFFF {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "font %d: %d bytes", id, len(payload))
	}
	return &Command{
		Op:       OpFontSave,
		transfer: true,
		frames: func(_ QueryID, mtu int) ([]Frame, error) {
			header := NewBuilder(OpFontSave).Uint8(id).Uint16(uint16(len(payload))).Frame()
			data, err := dataFrames(OpFontSave, payload, mtu)
			if err != nil {
				return nil, err
			}
			return append([]Frame{header}, data...), nil
		},
	}, nil
}
