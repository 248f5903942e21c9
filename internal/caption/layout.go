package caption

import (
	"fmt"
	"strconv"
	"strings"
)

type Unit string

const (
	UnitPercent Unit = "%"
	UnitPixel   Unit = "px"
	UnitEm      Unit = "em"
	UnitCell    Unit = "c"
)

// a value with its unit; the zero Length means "not set"
type Length struct {
	Value float64
	Unit  Unit
}

func (l Length) IsSet() bool {
	return l.Unit != ""
}

func (l Length) String() string {
	if !l.IsSet() {
		return ""
	}
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + string(l.Unit)
}

// ParseLength reads "10%", "32px", "1.5em" or "4c".
func ParseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	for _, unit := range []Unit{UnitPercent, UnitPixel, UnitEm, UnitCell} {
		if !strings.HasSuffix(s, string(unit)) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, string(unit)), 64)
		if err != nil {
			return Length{}, fmt.Errorf("invalid length %q: %w", s, err)
		}
		return Length{Value: v, Unit: unit}, nil
	}
	return Length{}, fmt.Errorf("invalid length %q: missing unit", s)
}

// horizontal and vertical pair, e.g. tts:origin="10% 80%"
type Point struct {
	X Length
	Y Length
}

// ParsePoint reads two whitespace separated lengths.
func ParsePoint(s string) (Point, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("invalid point %q: expected two lengths", s)
	}
	x, err := ParseLength(fields[0])
	if err != nil {
		return Point{}, err
	}
	y, err := ParseLength(fields[1])
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

// positioning of a caption or of a whole language track
type Layout struct {
	Origin *Point
	Extent *Point
	Align  string
}

func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	out := &Layout{Align: l.Align}
	if l.Origin != nil {
		origin := *l.Origin
		out.Origin = &origin
	}
	if l.Extent != nil {
		extent := *l.Extent
		out.Extent = &extent
	}
	return out
}

func (l *Layout) IsZero() bool {
	return l == nil || (l.Origin == nil && l.Extent == nil && l.Align == "")
}
