package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GlassesVersion identifies the firmware and the unit.
type GlassesVersion struct {
	Major  uint8
	Minor  uint8
	Patch  uint8
	Extra  byte // release letter, 0 when absent
	Year   uint8
	Week   uint8
	Serial uint32 // 24 bits on the wire
}

func DecodeGlassesVersion(b []byte) (GlassesVersion, error) {
	v, err := glassesVersionLayout.decodeBytes(b)
	if err != nil {
		return GlassesVersion{}, err
	}
	return GlassesVersion{
		Major:  uint8(v[0]),
		Minor:  uint8(v[1]),
		Patch:  uint8(v[2]),
		Extra:  byte(v[3]),
		Year:   uint8(v[4]),
		Week:   uint8(v[5]),
		Serial: uint32(v[6]),
	}, nil
}

func (g GlassesVersion) Encode() []byte {
	b := NewBuilder(OpVersion)
	glassesVersionLayout.encode(b, int64(g.Major), int64(g.Minor), int64(g.Patch), int64(g.Extra),
		int64(g.Year), int64(g.Week), int64(g.Serial&0xFFFFFF))
	return b.Payload()
}

// Version formats major.minor.patch, with .extra when a release letter is set.
func (g GlassesVersion) Version() string {
	v := fmt.Sprintf("%d.%d.%d", g.Major, g.Minor, g.Patch)
	if g.Extra != 0 {
		v += "." + string(rune(g.Extra))
	}
	return v
}

func (g GlassesVersion) String() string {
	return g.Version()
}

// Less orders versions by major, minor, patch then release letter.
func (g GlassesVersion) Less(o GlassesVersion) bool {
	switch {
	case g.Major != o.Major:
		return g.Major < o.Major
	case g.Minor != o.Minor:
		return g.Minor < o.Minor
	case g.Patch != o.Patch:
		return g.Patch < o.Patch
	}
	return g.Extra < o.Extra
}

// ParseGlassesVersion reads loosely formatted strings such as "v4.3.2b" or
// "FW 4.3". Everything but digits and dots is dropped, a trailing letter becomes
// Extra, and missing components are zero. It never fails.
func ParseGlassesVersion(s string) GlassesVersion {
	var g GlassesVersion
	s = strings.TrimSpace(s)
	if n := len(s); n > 0 && isLetter(s[n-1]) {
		g.Extra = s[n-1]
		s = s[:n-1]
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
	parts := strings.Split(strings.Trim(cleaned, "."), ".")
	dst := []*uint8{&g.Major, &g.Minor, &g.Patch}
	for i, p := range parts {
		if i >= len(dst) {
			break
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			continue
		}
		if err != nil || n > math.MaxUint8 {
			n = math.MaxUint8
		}
		*dst[i] = uint8(n)
	}
	return g
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
