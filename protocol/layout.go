package protocol

import "fmt"

type fieldKind uint8

const (
	unsignedField fieldKind = iota
	signedField
	boolField
	charField
)

type field struct {
	name  string
	width int
	kind  fieldKind
}

// recordLayout is the byte-level description of a fixed record. One generic
// decoder and encoder consume it, so each record only maps values to its fields.
type recordLayout []field

func unsigned(name string, width int) field { return field{name, width, unsignedField} }
func signed(name string, width int) field { return field{name, width, signedField} }
func boolean(name string) field { return field{name, 1, boolField} }
func character(name string) field { return field{name, 1, charField} }

// repeated expands n consecutive fields named name[0]..name[n-1].
func repeated(name string, n, width int) []field {
	fs := make([]field, n)
	for i := range fs {
		fs[i] = unsigned(fmt.Sprintf("%s[%d]", name, i), width)
	}
	return fs
}

// Size returns the encoded size in bytes.
func (l recordLayout) Size() int {
	n := 0
	for _, f := range l {
		n += f.width
	}
	return n
}

// Names lists field names in wire order.
func (l recordLayout) Names() []string {
	names := make([]string, len(l))
	for i, f := range l {
		names[i] = f.name
	}
	return names
}

func (l recordLayout) decodeBytes(b []byte) ([]int64, error) {
	return l.decode(NewReader(b))
}

// decode reads one record. Booleans decode to 0/1.
func (l recordLayout) decode(r *Reader) ([]int64, error) {
	if r.Len() < l.Size() {
		return nil, malformed("record needs %d bytes, have %d", l.Size(), r.Len())
	}
	vals := make([]int64, len(l))
	for i, f := range l {
		v, err := r.readUintN(f.width)
		if err != nil {
			return nil, err
		}
		switch f.kind {
		case signedField:
			shift := uint(64 - 8*f.width)
			vals[i] = int64(v<<shift) >> shift
		case boolField:
			if v != 0 {
				vals[i] = 1
			}
		default:
			vals[i] = int64(v)
		}
	}
	return vals, nil
}

// encode appends one record. Passing the wrong number of values is a programming error.
func (l recordLayout) encode(b *Builder, vals ...int64) {
	if len(vals) != len(l) {
		panic(fmt.Sprintf("layout has %d fields, got %d values", len(l), len(vals)))
	}
	for i, f := range l {
		v := vals[i]
		if f.kind == boolField && v != 0 {
			v = 1
		}
		b.uintN(uint64(v), f.width)
	}
}

func b2i(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Wire layouts, big-endian.
var (
	configurationLayout = recordLayout{
		unsigned("id", 1), unsigned("version", 4), unsigned("nbImg", 1), unsigned("nbLayout", 1), unsigned("nbFont", 1),
	}
	configurationDescriptionLayout = recordLayout{
		unsigned("size", 4), unsigned("version", 4), unsigned("usageCount", 1), unsigned("installCount", 1), boolean("isSystem"),
	}
	configurationElementsInfoLayout = recordLayout{
		unsigned("version", 4), unsigned("nbImg", 1), unsigned("nbLayout", 1), unsigned("nbFont", 1), unsigned("nbPage", 1), unsigned("nbGauge", 1),
	}
	freeSpaceLayout = recordLayout{
		unsigned("totalSize", 4), unsigned("freeSpace", 4),
	}
	gaugeInfoLayout = recordLayout{
		signed("x", 2), signed("y", 2), unsigned("r", 2), unsigned("rin", 2), unsigned("start", 1), unsigned("end", 1), boolean("clockwise"),
	}
	fontInfoLayout = recordLayout{
		unsigned("id", 1), unsigned("height", 1),
	}
	imageInfoLayout = recordLayout{
		unsigned("width", 2), unsigned("height", 2),
	}
	glassesVersionLayout = recordLayout{
		unsigned("major", 1), unsigned("minor", 1), unsigned("patch", 1), character("extra"), unsigned("year", 1), unsigned("week", 1), unsigned("serial", 3),
	}
	glassesSettingsLayout = recordLayout{
		signed("globalXShift", 1), signed("globalYShift", 1), unsigned("luma", 2), boolean("alsEnable"), boolean("gestureEnable"),
	}
	layoutParametersLayout = recordLayout{
		unsigned("id", 1), unsigned("subLen", 1), unsigned("x", 2), unsigned("y", 1), unsigned("width", 2), unsigned("height", 1),
		unsigned("fg", 1), unsigned("bg", 1), unsigned("font", 1), boolean("textValid"), unsigned("textX", 2), unsigned("textY", 1),
		unsigned("rotation", 1), boolean("textOpacity"),
	}
	sensorParametersLayout = append(recordLayout(repeated("alsLuma", 9, 2)),
		unsigned("alsPeriod", 2), unsigned("gesturePeriod", 2))
	pageLayoutLayout = recordLayout{
		unsigned("layoutId", 1), signed("x", 2), unsigned("y", 1),
	}
)
