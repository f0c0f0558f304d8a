package protocol

import "math"

// Response is the decoded result of a request. Each record type is one variant.
type Response interface {
	isResponse()
}

// Ack is the response of commands the device does not answer.
type Ack struct{}

// Configuration describes the configuration selected by id.
type Configuration struct {
	ID       uint8
	Version  uint32
	NbImg    uint8
	NbLayout uint8
	NbFont   uint8
}

func DecodeConfiguration(b []byte) (Configuration, error) {
	v, err := configurationLayout.decodeBytes(b)
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		ID:       uint8(v[0]),
		Version:  uint32(v[1]),
		NbImg:    uint8(v[2]),
		NbLayout: uint8(v[3]),
		NbFont:   uint8(v[4]),
	}, nil
}

func (c Configuration) encodeTo(b *Builder) {
	configurationLayout.encode(b, int64(c.ID), int64(c.Version), int64(c.NbImg), int64(c.NbLayout), int64(c.NbFont))
}

func (c Configuration) Encode() []byte {
	b := NewBuilder(OpWConfigID)
	c.encodeTo(b)
	return b.Payload()
}

// ConfigurationDescription is one entry of the configuration list.
type ConfigurationDescription struct {
	Name         string
	Size         uint32
	Version      uint32
	UsageCount   uint8
	InstallCount uint8
	IsSystem     bool
}

// ConfigurationDescriptions is the decoded configuration list.
type ConfigurationDescriptions []ConfigurationDescription

// DecodeConfigurationDescriptions parses repeated NUL-terminated names, each followed
// by its fixed record, until the buffer is exhausted.
func DecodeConfigurationDescriptions(b []byte) (ConfigurationDescriptions, error) {
	r := NewReader(b)
	var list ConfigurationDescriptions
	for r.Len() > 0 {
		name, err := r.String()
		if err != nil {
			return nil, err
		}
		v, err := configurationDescriptionLayout.decode(r)
		if err != nil {
			return nil, err
		}
		list = append(list, ConfigurationDescription{
			Name:         name,
			Size:         uint32(v[0]),
			Version:      uint32(v[1]),
			UsageCount:   uint8(v[2]),
			InstallCount: uint8(v[3]),
			IsSystem:     v[4] != 0,
		})
	}
	return list, nil
}

func (c ConfigurationDescription) encodeTo(b *Builder) {
	b.String(c.Name)
	configurationDescriptionLayout.encode(b, int64(c.Size), int64(c.Version),
		int64(c.UsageCount), int64(c.InstallCount), b2i(c.IsSystem))
}

func (l ConfigurationDescriptions) Encode() []byte {
	b := NewBuilder(OpCfgList)
	for _, c := range l {
		c.encodeTo(b)
	}
	return b.Payload()
}

// ConfigurationElementsInfo counts the elements stored in a named configuration.
type ConfigurationElementsInfo struct {
	Version  uint32
	NbImg    uint8
	NbLayout uint8
	NbFont   uint8
	NbPage   uint8
	NbGauge  uint8
}

func DecodeConfigurationElementsInfo(b []byte) (ConfigurationElementsInfo, error) {
	v, err := configurationElementsInfoLayout.decodeBytes(b)
	if err != nil {
		return ConfigurationElementsInfo{}, err
	}
	return ConfigurationElementsInfo{
		Version:  uint32(v[0]),
		NbImg:    uint8(v[1]),
		NbLayout: uint8(v[2]),
		NbFont:   uint8(v[3]),
		NbPage:   uint8(v[4]),
		NbGauge:  uint8(v[5]),
	}, nil
}

func (c ConfigurationElementsInfo) Encode() []byte {
	b := NewBuilder(OpCfgRead)
	configurationElementsInfoLayout.encode(b, int64(c.Version), int64(c.NbImg), int64(c.NbLayout),
		int64(c.NbFont), int64(c.NbPage), int64(c.NbGauge))
	return b.Payload()
}

// FreeSpace reports configuration storage usage in bytes.
type FreeSpace struct {
	TotalSize uint32
	FreeSpace uint32
}

func DecodeFreeSpace(b []byte) (FreeSpace, error) {
	v, err := freeSpaceLayout.decodeBytes(b)
	if err != nil {
		return FreeSpace{}, err
	}
	return FreeSpace{TotalSize: uint32(v[0]), FreeSpace: uint32(v[1])}, nil
}

func (f FreeSpace) Encode() []byte {
	b := NewBuilder(OpCfgFreeSpace)
	freeSpaceLayout.encode(b, int64(f.TotalSize), int64(f.FreeSpace))
	return b.Payload()
}

// GaugeInfo is a saved gauge definition.
type GaugeInfo struct {
	X         int16
	Y         int16
	R         uint16
	Rin       uint16
	Start     uint8
	End       uint8
	Clockwise bool
}

func DecodeGaugeInfo(b []byte) (GaugeInfo, error) {
	v, err := gaugeInfoLayout.decodeBytes(b)
	if err != nil {
		return GaugeInfo{}, err
	}
	return GaugeInfo{
		X:         int16(v[0]),
		Y:         int16(v[1]),
		R:         uint16(v[2]),
		Rin:       uint16(v[3]),
		Start:     uint8(v[4]),
		End:       uint8(v[5]),
		Clockwise: v[6] != 0,
	}, nil
}

func (g GaugeInfo) encodeTo(b *Builder) {
	gaugeInfoLayout.encode(b, int64(g.X), int64(g.Y), int64(g.R), int64(g.Rin),
		int64(g.Start), int64(g.End), b2i(g.Clockwise))
}

func (g GaugeInfo) Encode() []byte {
	b := NewBuilder(OpGaugeSave)
	g.encodeTo(b)
	return b.Payload()
}

// FontInfo is one entry of the font list.
type FontInfo struct {
	ID     uint8
	Height uint8
}

type FontInfos []FontInfo

// DecodeFontInfos parses packed 2-byte entries until the buffer is exhausted.
func DecodeFontInfos(b []byte) (FontInfos, error) {
	if len(b)%fontInfoLayout.Size() != 0 {
		return nil, malformed("font list of %d bytes", len(b))
	}
	r := NewReader(b)
	list := make(FontInfos, 0, len(b)/fontInfoLayout.Size())
	for r.Len() > 0 {
		v, err := fontInfoLayout.decode(r)
		if err != nil {
			return nil, err
		}
		list = append(list, FontInfo{ID: uint8(v[0]), Height: uint8(v[1])})
	}
	return list, nil
}

func (l FontInfos) Encode() []byte {
	b := NewBuilder(OpFontList)
	for _, f := range l {
		fontInfoLayout.encode(b, int64(f.ID), int64(f.Height))
	}
	return b.Payload()
}

// FontData is a font bitmap as stored by fontSave.
type FontData struct {
	Height uint8
	Data   []byte
}

func (f FontData) Encode() []byte {
	return NewBuilder(OpFontSave).Uint8(f.Height).Raw(f.Data).Payload()
}

func DecodeFontData(b []byte) (FontData, error) {
	r := NewReader(b)
	h, err := r.Uint8()
	if err != nil {
		return FontData{}, err
	}
	return FontData{Height: h, Data: append([]byte(nil), r.Rest()...)}, nil
}

// ImageInfo is one entry of the image list. IDs are assigned in list order from 0.
type ImageInfo struct {
	ID     uint8
	Width  uint16
	Height uint16
}

type ImageInfos []ImageInfo

// DecodeImageInfos parses packed 4-byte entries until the buffer is exhausted.
func DecodeImageInfos(b []byte) (ImageInfos, error) {
	if len(b)%imageInfoLayout.Size() != 0 {
		return nil, malformed("image list of %d bytes", len(b))
	}
	if n := len(b) / imageInfoLayout.Size(); n > math.MaxUint8+1 {
		return nil, malformed("image list of %d entries", n)
	}
	r := NewReader(b)
	list := make(ImageInfos, 0, len(b)/imageInfoLayout.Size())
	for id := 0; r.Len() > 0; id++ {
		v, err := imageInfoLayout.decode(r)
		if err != nil {
			return nil, err
		}
		list = append(list, ImageInfo{ID: uint8(id), Width: uint16(v[0]), Height: uint16(v[1])})
	}
	return list, nil
}

func (l ImageInfos) Encode() []byte {
	b := NewBuilder(OpImgList)
	for _, i := range l {
		imageInfoLayout.encode(b, int64(i.Width), int64(i.Height))
	}
	return b.Payload()
}

// GlassesSettings is the response of the settings command.
type GlassesSettings struct {
	GlobalXShift  int8
	GlobalYShift  int8
	Luma          uint16
	AlsEnable     bool
	GestureEnable bool
}

func DecodeGlassesSettings(b []byte) (GlassesSettings, error) {
	v, err := glassesSettingsLayout.decodeBytes(b)
	if err != nil {
		return GlassesSettings{}, err
	}
	return GlassesSettings{
		GlobalXShift:  int8(v[0]),
		GlobalYShift:  int8(v[1]),
		Luma:          uint16(v[2]),
		AlsEnable:     v[3] != 0,
		GestureEnable: v[4] != 0,
	}, nil
}

func (g GlassesSettings) Encode() []byte {
	b := NewBuilder(OpSettings)
	glassesSettingsLayout.encode(b, int64(g.GlobalXShift), int64(g.GlobalYShift), int64(g.Luma),
		b2i(g.AlsEnable), b2i(g.GestureEnable))
	return b.Payload()
}

// MinSensorPeriod is the shortest period the device honours.
const MinSensorPeriod = 250

// SensorParameters configures the ambient light and gesture sensors.
type SensorParameters struct {
	AlsLuma       [9]uint16
	AlsPeriod     uint16
	GesturePeriod uint16
}

// DecodeSensorParameters reads the record; periods below MinSensorPeriod read as MinSensorPeriod.
func DecodeSensorParameters(b []byte) (SensorParameters, error) {
	v, err := sensorParametersLayout.decodeBytes(b)
	if err != nil {
		return SensorParameters{}, err
	}
	var p SensorParameters
	for i := range p.AlsLuma {
		p.AlsLuma[i] = uint16(v[i])
	}
	p.AlsPeriod = clampPeriod(uint16(v[9]))
	p.GesturePeriod = clampPeriod(uint16(v[10]))
	return p, nil
}

func clampPeriod(p uint16) uint16 {
	if p < MinSensorPeriod {
		return MinSensorPeriod
	}
	return p
}

func (p SensorParameters) encodeTo(b *Builder) {
	vals := make([]int64, 0, len(sensorParametersLayout))
	for _, l := range p.AlsLuma {
		vals = append(vals, int64(l))
	}
	vals = append(vals, int64(p.AlsPeriod), int64(p.GesturePeriod))
	sensorParametersLayout.encode(b, vals...)
}

func (p SensorParameters) Encode() []byte {
	b := NewBuilder(OpSensorParamSet)
	p.encodeTo(b)
	return b.Payload()
}

// DeviceInformation is read from the GATT device information service. Link adapters
// deliver it as six NUL-terminated strings.
type DeviceInformation struct {
	ManufacturerName string
	ModelNumber      string
	SerialNumber     string
	HardwareVersion  string
	FirmwareVersion  string
	SoftwareVersion  string
}

func DecodeDeviceInformation(b []byte) (DeviceInformation, error) {
	r := NewReader(b)
	var fields [6]string
	for i := range fields {
		s, err := r.String()
		if err != nil {
			return DeviceInformation{}, err
		}
		fields[i] = s
	}
	return DeviceInformation{
		ManufacturerName: fields[0],
		ModelNumber:      fields[1],
		SerialNumber:     fields[2],
		HardwareVersion:  fields[3],
		FirmwareVersion:  fields[4],
		SoftwareVersion:  fields[5],
	}, nil
}

func (d DeviceInformation) Encode() []byte {
	b := NewBuilder(OpVersion)
	for _, s := range []string{d.ManufacturerName, d.ModelNumber, d.SerialNumber,
		d.HardwareVersion, d.FirmwareVersion, d.SoftwareVersion} {
		b.String(s)
	}
	return b.Payload()
}

// PageLayout places a saved layout on a page.
type PageLayout struct {
	LayoutID uint8
	X        int16
	Y        uint8
}

// PageInfo is a saved page: an id and the layouts it shows.
type PageInfo struct {
	ID      uint8
	Layouts []PageLayout
}

func DecodePageInfo(b []byte) (PageInfo, error) {
	r := NewReader(b)
	id, err := r.Uint8()
	if err != nil {
		return PageInfo{}, err
	}
	if r.Len()%pageLayoutLayout.Size() != 0 {
		return PageInfo{}, malformed("page %d layout block of %d bytes", id, r.Len())
	}
	p := PageInfo{ID: id}
	for r.Len() > 0 {
		v, err := pageLayoutLayout.decode(r)
		if err != nil {
			return PageInfo{}, err
		}
		p.Layouts = append(p.Layouts, PageLayout{LayoutID: uint8(v[0]), X: int16(v[1]), Y: uint8(v[2])})
	}
	return p, nil
}

func (p PageInfo) encodeTo(b *Builder) {
	b.Uint8(p.ID)
	for _, l := range p.Layouts {
		pageLayoutLayout.encode(b, int64(l.LayoutID), int64(l.X), int64(l.Y))
	}
}

func (p PageInfo) Encode() []byte {
	b := NewBuilder(OpPageSave)
	p.encodeTo(b)
	return b.Payload()
}

// BatteryLevel is a charge percentage.
type BatteryLevel uint8

// IDList is the response of layout, gauge and page list commands.
type IDList []uint8

func decodeIDList(b []byte) IDList {
	return append(IDList{}, b...)
}

// Count is a single numeric response, such as the number of configurations.
type Count uint8

func (Ack) isResponse()                       {}
func (Configuration) isResponse()             {}
func (ConfigurationDescriptions) isResponse() {}
func (ConfigurationElementsInfo) isResponse() {}
func (FreeSpace) isResponse()                 {}
func (GaugeInfo) isResponse()                 {}
func (FontInfos) isResponse()                 {}
func (ImageInfos) isResponse()                {}
func (GlassesVersion) isResponse()            {}
func (GlassesSettings) isResponse()           {}
func (LayoutParameters) isResponse()          {}
func (PageInfo) isResponse()                  {}
func (SensorParameters) isResponse()          {}
func (DeviceInformation) isResponse()         {}
func (BatteryLevel) isResponse()              {}
func (IDList) isResponse()                    {}
func (Count) isResponse()                     {}
