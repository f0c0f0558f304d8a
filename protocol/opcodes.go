package protocol

import "fmt"

// Opcode is the first byte of every frame.
type Opcode byte

// Device commands.
const (
	OpPower    Opcode = 0x00
	OpClear    Opcode = 0x01
	OpGrey     Opcode = 0x02
	OpDemo     Opcode = 0x03
	OpBattery  Opcode = 0x05
	OpVersion  Opcode = 0x06
	OpLed      Opcode = 0x08
	OpShift    Opcode = 0x09
	OpSettings Opcode = 0x0A

	OpLuma Opcode = 0x10

	OpSensor         Opcode = 0x20
	OpGesture        Opcode = 0x21
	OpAls            Opcode = 0x22
	OpSensorParamSet Opcode = 0x23
	OpSensorParamGet Opcode = 0x24

	OpColor    Opcode = 0x30
	OpPoint    Opcode = 0x31
	OpLine     Opcode = 0x32
	OpRect     Opcode = 0x33
	OpRectf    Opcode = 0x34
	OpCirc     Opcode = 0x35
	OpCircf    Opcode = 0x36
	OpText     Opcode = 0x37
	OpPolyline Opcode = 0x38

	OpImgSave    Opcode = 0x41
	OpImgDisplay Opcode = 0x42
	OpImgStream  Opcode = 0x44
	OpImgDelete  Opcode = 0x46
	OpImgList    Opcode = 0x47

	OpFontList   Opcode = 0x50
	OpFontSave   Opcode = 0x51
	OpFontSelect Opcode = 0x52
	OpFontDelete Opcode = 0x53

	OpLayoutSave     Opcode = 0x60
	OpLayoutDelete   Opcode = 0x61
	OpLayoutDisplay  Opcode = 0x62
	OpLayoutClear    Opcode = 0x63
	OpLayoutList     Opcode = 0x64
	OpLayoutPosition Opcode = 0x65
	OpLayoutGet      Opcode = 0x67

	OpGaugeDisplay Opcode = 0x70
	OpGaugeSave    Opcode = 0x71
	OpGaugeDelete  Opcode = 0x72
	OpGaugeList    Opcode = 0x73
	OpGaugeGet     Opcode = 0x74

	OpPageSave    Opcode = 0x80
	OpPageGet     Opcode = 0x81
	OpPageDelete  Opcode = 0x82
	OpPageDisplay Opcode = 0x83
	OpPageClear   Opcode = 0x84
	OpPageList    Opcode = 0x85

	OpWConfigID   Opcode = 0xA1
	OpRConfigID   Opcode = 0xA2
	OpSetConfigID Opcode = 0xA3

	OpCfgWrite     Opcode = 0xD0
	OpCfgRead      Opcode = 0xD1
	OpCfgSet       Opcode = 0xD2
	OpCfgList      Opcode = 0xD3
	OpCfgRename    Opcode = 0xD4
	OpCfgDelete    Opcode = 0xD5
	OpCfgDeleteLRU Opcode = 0xD6
	OpCfgFreeSpace Opcode = 0xD7
	OpCfgGetNb     Opcode = 0xD8

	OpShutdown Opcode = 0xE0
)

// Unsolicited notifications as UART bridges forward them, one whole frame per
// characteristic value. GATT links hand the decoded event to HandleEvent instead.
const (
	OpFlowControl   Opcode = 0xF0
	OpBatteryNotify Opcode = 0xF1
	OpSensorEvent   Opcode = 0xF2
)

// Opcodes whose frames carry a 2-byte length field.
var longLengthOpcodes = map[Opcode]bool{
	OpCfgList:   true,
	OpCfgRead:   true,
	OpImgSave:   true,
	OpImgStream: true,
	OpFontSave:  true,
	OpPageGet:   true,
	OpPageSave:  true,
	OpImgList:   true,
}

// LongLength reports whether frames with this opcode use a 2-byte length field.
func (op Opcode) LongLength() bool {
	return longLengthOpcodes[op]
}

// Unsolicited reports whether the opcode is an event rather than a response.
func (op Opcode) Unsolicited() bool {
	return op >= OpFlowControl && op <= OpSensorEvent
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", byte(op))
}

var opcodeNames = map[Opcode]string{
	OpPower: "power", OpClear: "clear", OpGrey: "grey", OpDemo: "demo",
	OpBattery: "battery", OpVersion: "vers", OpLed: "led", OpShift: "shift",
	OpSettings: "settings", OpLuma: "luma", OpSensor: "sensor", OpGesture: "gesture",
	OpAls: "als", OpSensorParamSet: "sensorSet", OpSensorParamGet: "sensorGet",
	OpColor: "color", OpPoint: "point", OpLine: "line", OpRect: "rect", OpRectf: "rectf",
	OpCirc: "circ", OpCircf: "circf", OpText: "txt", OpPolyline: "polyline",
	OpImgSave: "imgSave", OpImgDisplay: "imgDisplay", OpImgStream: "imgStream",
	OpImgDelete: "imgDelete", OpImgList: "imgList",
	OpFontList: "fontList", OpFontSave: "fontSave", OpFontSelect: "fontSelect",
	OpFontDelete: "fontDelete",
	OpLayoutSave: "layoutSave", OpLayoutDelete: "layoutDelete", OpLayoutDisplay: "layoutDisplay",
	OpLayoutClear: "layoutClear", OpLayoutList: "layoutList", OpLayoutPosition: "layoutPosition",
	OpLayoutGet: "layoutGet",
	OpGaugeDisplay: "gaugeDisplay", OpGaugeSave: "gaugeSave", OpGaugeDelete: "gaugeDelete",
	OpGaugeList: "gaugeList", OpGaugeGet: "gaugeGet",
	OpPageSave: "pageSave", OpPageGet: "pageGet", OpPageDelete: "pageDelete",
	OpPageDisplay: "pageDisplay", OpPageClear: "pageClear", OpPageList: "pageList",
	OpWConfigID: "wConfigID", OpRConfigID: "rConfigID", OpSetConfigID: "setConfigID",
	OpCfgWrite: "cfgWrite", OpCfgRead: "cfgRead", OpCfgSet: "cfgSet", OpCfgList: "cfgList",
	OpCfgRename: "cfgRename", OpCfgDelete: "cfgDelete", OpCfgDeleteLRU: "cfgDeleteLessUsed",
	OpCfgFreeSpace: "cfgFreeSpace", OpCfgGetNb: "cfgGetNb",
	OpShutdown: "shutdown",
	OpFlowControl: "flowControl", OpBatteryNotify: "batteryNotify", OpSensorEvent: "sensorEvent",
}
