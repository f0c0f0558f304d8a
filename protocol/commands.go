package protocol

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// shutdownKey guards the shutdown command against accidental use.
var shutdownKey = []byte{0x6F, 0x7F, 0xC4, 0xEE}

// DeleteAll is the id that makes delete commands remove every entry.
const DeleteAll = 0xFF

func writeOnly(b *Builder) *Command {
	return NewCommand(b.Opcode(), b.Payload(), nil)
}

func query(b *Builder, decode decodeFunc) *Command {
	return NewCommand(b.Opcode(), b.Payload(), decode)
}

// queryByID prefixes the payload with the QueryID assigned at submit time.
func queryByID(op Opcode, payload []byte, decode decodeFunc) *Command {
	return &Command{
		Op:          op,
		Correlation: ByQueryID,
		frames: func(q QueryID, _ int) ([]Frame, error) {
			return []Frame{NewBuilder(op).QueryID(q).Raw(payload).Frame()}, nil
		},
		decode: decode,
	}
}

func queryByName(op Opcode, name string, decode decodeFunc) *Command {
	c := NewCommand(op, NewBuilder(op).String(name).Payload(), decode)
	c.Correlation = ByName
	c.Name = name
	return c
}

// do runs cmd and checks the response type.
func do[T Response](ctx context.Context, d *Dispatcher, cmd *Command) (T, error) {
	var zero T
	resp, err := d.Do(ctx, cmd)
	if err != nil {
		return zero, err
	}
	v, ok := resp.(T)
	if !ok {
		return zero, malformed("%v answered with %T", cmd, resp)
	}
	return v, nil
}

func (d *Dispatcher) exec(ctx context.Context, b *Builder) error {
	_, err := d.Do(ctx, writeOnly(b))
	return err
}

func decodeAs[T Response](fn func([]byte) (T, error)) decodeFunc {
	return func(b []byte) (Response, error) {
		v, err := fn(b)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func decodeIDs(b []byte) (Response, error) {
	return decodeIDList(b), nil
}

func decodeCount(b []byte) (Response, error) {
	r := NewReader(b)
	n, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	return Count(n), nil
}

func decodeBattery(b []byte) (Response, error) {
	r := NewReader(b)
	l, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if l > 100 {
		return nil, malformed("battery level %d", l)
	}
	return BatteryLevel(l), nil
}

// General.

func (d *Dispatcher) Power(ctx context.Context, on bool) error {
	return d.exec(ctx, NewBuilder(OpPower).Bool(on))
}

func (d *Dispatcher) Clear(ctx context.Context) error {
	return d.exec(ctx, NewBuilder(OpClear))
}

// Grey fills the screen with level 0..15.
func (d *Dispatcher) Grey(ctx context.Context, level uint8) error {
	return d.exec(ctx, NewBuilder(OpGrey).Uint8(level))
}

func (d *Dispatcher) Demo(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpDemo).Uint8(id))
}

func (d *Dispatcher) Battery(ctx context.Context) (BatteryLevel, error) {
	return do[BatteryLevel](ctx, d, query(NewBuilder(OpBattery), decodeBattery))
}

func (d *Dispatcher) Version(ctx context.Context) (GlassesVersion, error) {
	return do[GlassesVersion](ctx, d, query(NewBuilder(OpVersion), decodeAs(DecodeGlassesVersion)))
}

// LedState drives the status led.
type LedState uint8

const (
	LedOff LedState = iota
	LedOn
	LedToggle
	LedBlink
)

func (d *Dispatcher) Led(ctx context.Context, s LedState) error {
	return d.exec(ctx, NewBuilder(OpLed).Uint8(uint8(s)))
}

// Shift moves the whole display by x, y pixels.
func (d *Dispatcher) Shift(ctx context.Context, x, y int16) error {
	return d.exec(ctx, NewBuilder(OpShift).Int16(x).Int16(y))
}

func (d *Dispatcher) Settings(ctx context.Context) (GlassesSettings, error) {
	return do[GlassesSettings](ctx, d, query(NewBuilder(OpSettings), decodeAs(DecodeGlassesSettings)))
}

// Display.

func (d *Dispatcher) Luma(ctx context.Context, level uint8) error {
	return d.exec(ctx, NewBuilder(OpLuma).Uint8(level))
}

// Optical sensor.

func (d *Dispatcher) Sensor(ctx context.Context, on bool) error {
	return d.exec(ctx, NewBuilder(OpSensor).Bool(on))
}

func (d *Dispatcher) Gesture(ctx context.Context, on bool) error {
	return d.exec(ctx, NewBuilder(OpGesture).Bool(on))
}

func (d *Dispatcher) Als(ctx context.Context, on bool) error {
	return d.exec(ctx, NewBuilder(OpAls).Bool(on))
}

func (d *Dispatcher) SetSensorParameters(ctx context.Context, p SensorParameters) error {
	b := NewBuilder(OpSensorParamSet)
	p.encodeTo(b)
	return d.exec(ctx, b)
}

func (d *Dispatcher) SensorParameters(ctx context.Context) (SensorParameters, error) {
	return do[SensorParameters](ctx, d, query(NewBuilder(OpSensorParamGet), decodeAs(DecodeSensorParameters)))
}

// Graphics.

func (d *Dispatcher) Color(ctx context.Context, c uint8) error {
	return d.exec(ctx, NewBuilder(OpColor).Uint8(c))
}

func (d *Dispatcher) Point(ctx context.Context, x, y int16) error {
	return d.exec(ctx, NewBuilder(OpPoint).Int16(x).Int16(y))
}

func (d *Dispatcher) Line(ctx context.Context, x0, y0, x1, y1 int16) error {
	return d.exec(ctx, NewBuilder(OpLine).Int16(x0).Int16(y0).Int16(x1).Int16(y1))
}

func (d *Dispatcher) Rect(ctx context.Context, x0, y0, x1, y1 int16) error {
	return d.exec(ctx, NewBuilder(OpRect).Int16(x0).Int16(y0).Int16(x1).Int16(y1))
}

func (d *Dispatcher) Rectf(ctx context.Context, x0, y0, x1, y1 int16) error {
	return d.exec(ctx, NewBuilder(OpRectf).Int16(x0).Int16(y0).Int16(x1).Int16(y1))
}

func (d *Dispatcher) Circ(ctx context.Context, x, y int16, r uint8) error {
	return d.exec(ctx, NewBuilder(OpCirc).Int16(x).Int16(y).Uint8(r))
}

func (d *Dispatcher) Circf(ctx context.Context, x, y int16, r uint8) error {
	return d.exec(ctx, NewBuilder(OpCircf).Int16(x).Int16(y).Uint8(r))
}

func (d *Dispatcher) Text(ctx context.Context, x, y int16, rot Rotation, font, color uint8, s string) error {
	return d.exec(ctx, NewBuilder(OpText).Int16(x).Int16(y).Rotation(rot).Uint8(font).Uint8(color).String(s))
}

// Point2 is a polyline vertex.
type Point2 struct {
	X, Y int16
}

func (d *Dispatcher) Polyline(ctx context.Context, pts []Point2) error {
	b := NewBuilder(OpPolyline)
	for _, p := range pts {
		b.Int16(p.X).Int16(p.Y)
	}
	return d.exec(ctx, b)
}

// Images.

func (d *Dispatcher) ImageList(ctx context.Context) (ImageInfos, error) {
	return do[ImageInfos](ctx, d, query(NewBuilder(OpImgList), decodeAs(DecodeImageInfos)))
}

// SaveImage rasterizes img and stores it under id.
func (d *Dispatcher) SaveImage(ctx context.Context, id uint8, img image.Image, f ImgSaveFormat) error {
	data, err := NewImageData(img, f)
	if err != nil {
		return err
	}
	return d.SaveImageData(ctx, id, data)
}

func (d *Dispatcher) SaveImageData(ctx context.Context, id uint8, data ImageData) error {
	_, err := d.Do(ctx, saveImageCommand(id, data))
	return err
}

func (d *Dispatcher) DisplayImage(ctx context.Context, id uint8, x, y int16) error {
	return d.exec(ctx, NewBuilder(OpImgDisplay).Uint8(id).Int16(x).Int16(y))
}

// DeleteImage removes one image, or all with DeleteAll.
func (d *Dispatcher) DeleteImage(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpImgDelete).Uint8(id))
}

// StreamImage displays img at x, y without storing it.
func (d *Dispatcher) StreamImage(ctx context.Context, img image.Image, x, y int16, f ImgStreamFormat) error {
	sf, err := f.saveFormat()
	if err != nil {
		return err
	}
	data, err := NewImageData(img, sf)
	if err != nil {
		return err
	}
	cmd, err := streamImageCommand(data, x, y)
	if err != nil {
		return err
	}
	_, err = d.Do(ctx, cmd)
	return err
}

// Fonts.

func (d *Dispatcher) FontList(ctx context.Context) (FontInfos, error) {
	return do[FontInfos](ctx, d, query(NewBuilder(OpFontList), decodeAs(DecodeFontInfos)))
}

func (d *Dispatcher) SaveFont(ctx context.Context, id uint8, f FontData) error {
	cmd, err := saveFontCommand(id, f)
	if err != nil {
		return err
	}
	_, err = d.Do(ctx, cmd)
	return err
}

func (d *Dispatcher) SelectFont(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpFontSelect).Uint8(id))
}

func (d *Dispatcher) DeleteFont(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpFontDelete).Uint8(id))
}

// Layouts.

func (d *Dispatcher) SaveLayout(ctx context.Context, l LayoutParameters) error {
	b := NewBuilder(OpLayoutSave)
	if err := l.encodeTo(b); err != nil {
		return err
	}
	return d.exec(ctx, b)
}

func (d *Dispatcher) DeleteLayout(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpLayoutDelete).Uint8(id))
}

// DisplayLayout shows layout id with text in its text area.
func (d *Dispatcher) DisplayLayout(ctx context.Context, id uint8, text string) error {
	return d.exec(ctx, NewBuilder(OpLayoutDisplay).Uint8(id).String(text))
}

func (d *Dispatcher) ClearLayout(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpLayoutClear).Uint8(id))
}

func (d *Dispatcher) LayoutList(ctx context.Context) (IDList, error) {
	return do[IDList](ctx, d, query(NewBuilder(OpLayoutList), decodeIDs))
}

func (d *Dispatcher) GetLayout(ctx context.Context, id uint8) (LayoutParameters, error) {
	return do[LayoutParameters](ctx, d, query(NewBuilder(OpLayoutGet).Uint8(id), decodeAs(DecodeLayoutParameters)))
}

// LayoutPosition moves layout id without redefining it.
func (d *Dispatcher) LayoutPosition(ctx context.Context, id uint8, x uint16, y uint8) error {
	return d.exec(ctx, NewBuilder(OpLayoutPosition).Uint8(id).Uint16(x).Uint8(y))
}

// Gauges.

func (d *Dispatcher) SaveGauge(ctx context.Context, id uint8, g GaugeInfo) error {
	b := NewBuilder(OpGaugeSave).Uint8(id)
	g.encodeTo(b)
	return d.exec(ctx, b)
}

func (d *Dispatcher) DeleteGauge(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpGaugeDelete).Uint8(id))
}

// DisplayGauge shows gauge id filled to value percent.
func (d *Dispatcher) DisplayGauge(ctx context.Context, id, value uint8) error {
	return d.exec(ctx, NewBuilder(OpGaugeDisplay).Uint8(id).Uint8(value))
}

func (d *Dispatcher) GaugeList(ctx context.Context) (IDList, error) {
	return do[IDList](ctx, d, query(NewBuilder(OpGaugeList), decodeIDs))
}

func (d *Dispatcher) GetGauge(ctx context.Context, id uint8) (GaugeInfo, error) {
	return do[GaugeInfo](ctx, d, query(NewBuilder(OpGaugeGet).Uint8(id), decodeAs(DecodeGaugeInfo)))
}

// Pages.

func (d *Dispatcher) SavePage(ctx context.Context, p PageInfo) error {
	b := NewBuilder(OpPageSave)
	p.encodeTo(b)
	return d.exec(ctx, b)
}

func (d *Dispatcher) GetPage(ctx context.Context, id uint8) (PageInfo, error) {
	return do[PageInfo](ctx, d, query(NewBuilder(OpPageGet).Uint8(id), decodeAs(DecodePageInfo)))
}

func (d *Dispatcher) DeletePage(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpPageDelete).Uint8(id))
}

// DisplayPage shows page id with one string per layout.
func (d *Dispatcher) DisplayPage(ctx context.Context, id uint8, texts ...string) error {
	b := NewBuilder(OpPageDisplay).Uint8(id)
	for _, t := range texts {
		b.String(t)
	}
	return d.exec(ctx, b)
}

func (d *Dispatcher) ClearPage(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpPageClear).Uint8(id))
}

func (d *Dispatcher) PageList(ctx context.Context) (IDList, error) {
	return do[IDList](ctx, d, query(NewBuilder(OpPageList), decodeIDs))
}

// Configurations.

func (d *Dispatcher) ConfigList(ctx context.Context) (ConfigurationDescriptions, error) {
	return do[ConfigurationDescriptions](ctx, d, queryByID(OpCfgList, nil, decodeAs(DecodeConfigurationDescriptions)))
}

func (d *Dispatcher) ReadConfig(ctx context.Context, name string) (ConfigurationElementsInfo, error) {
	return do[ConfigurationElementsInfo](ctx, d, queryByName(OpCfgRead, name, decodeAs(DecodeConfigurationElementsInfo)))
}

// WriteConfig creates or opens configuration name for writing.
func (d *Dispatcher) WriteConfig(ctx context.Context, name string, version, password uint32) error {
	return d.exec(ctx, NewBuilder(OpCfgWrite).String(name).Uint32(version).Uint32(password))
}

func (d *Dispatcher) SetConfig(ctx context.Context, name string) error {
	return d.exec(ctx, NewBuilder(OpCfgSet).String(name))
}

func (d *Dispatcher) RenameConfig(ctx context.Context, oldName, newName string, password uint32) error {
	return d.exec(ctx, NewBuilder(OpCfgRename).String(oldName).String(newName).Uint32(password))
}

func (d *Dispatcher) DeleteConfig(ctx context.Context, name string) error {
	return d.exec(ctx, NewBuilder(OpCfgDelete).String(name))
}

func (d *Dispatcher) DeleteLessUsedConfig(ctx context.Context) error {
	return d.exec(ctx, NewBuilder(OpCfgDeleteLRU))
}

func (d *Dispatcher) ConfigFreeSpace(ctx context.Context) (FreeSpace, error) {
	return do[FreeSpace](ctx, d, queryByID(OpCfgFreeSpace, nil, decodeAs(DecodeFreeSpace)))
}

func (d *Dispatcher) ConfigCount(ctx context.Context) (Count, error) {
	return do[Count](ctx, d, queryByID(OpCfgGetNb, nil, decodeCount))
}

// Config ids.

func (d *Dispatcher) WriteConfigID(ctx context.Context, c Configuration) error {
	b := NewBuilder(OpWConfigID)
	c.encodeTo(b)
	return d.exec(ctx, b)
}

func (d *Dispatcher) ReadConfigID(ctx context.Context, id uint8) (Configuration, error) {
	return do[Configuration](ctx, d, query(NewBuilder(OpRConfigID).Uint8(id), decodeAs(DecodeConfiguration)))
}

func (d *Dispatcher) SetConfigID(ctx context.Context, id uint8) error {
	return d.exec(ctx, NewBuilder(OpSetConfigID).Uint8(id))
}

// Device.

// Shutdown powers the glasses off.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.exec(ctx, NewBuilder(OpShutdown).Raw(shutdownKey))
}

// Exec writes a raw command the typed API does not cover. The response policy of op
// decides whether Exec waits for an answer; the answer is returned undecoded.
func (d *Dispatcher) Exec(ctx context.Context, op Opcode, payload []byte) ([]byte, error) {
	if op.Unsolicited() {
		return nil, errors.Errorf("%v cannot be sent", op)
	}
	cmd := NewCommand(op, payload, func(b []byte) (Response, error) {
		return RawResponse(append([]byte(nil), b...)), nil
	})
	switch cmd.Correlation {
	case ByQueryID:
		cmd = queryByID(op, payload, cmd.decode)
	case ByName:
		return nil, errors.Errorf("%v needs a name, use the typed call", op)
	}
	resp, err := d.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if raw, ok := resp.(RawResponse); ok {
		return raw, nil
	}
	return nil, nil
}

// RawResponse is an undecoded response payload.
type RawResponse []byte

func (RawResponse) isResponse() {}
