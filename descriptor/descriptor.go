// Package descriptor contains the element descriptors that drive BUFR data
// decoding.
//
// A Table B element describes how a single physical parameter is packed:
// the number of bits it occupies, a reference value added to the packed
// integer and a decimal scale. See Regulation 94.5.4 of WMO-No. 306 Vol I.2:
// https://library.wmo.int/idurl/4/35625.
package descriptor

import (
	"fmt"
	"math"
	"strconv"
)

// MaxWidth is the widest element that can be represented as a numeric value.
// Wider elements are valid but decode to NaN.
const MaxWidth = 64

// CharacterUnits is the Table B unit of character (CCITT IA5) elements.
const CharacterUnits = "CCITT IA5"

// FXY is a 16-bit descriptor code.
//
//	Bits  Content
//	1-2   F  descriptor class (0 element, 1 replication, 2 operator, 3 sequence)
//	3-8   X  category / number of replicated descriptors / operator
//	9-16  Y  entry within category / repeat count / operand
type FXY uint16

// Descriptor classes.
const (
	ClassElement     = 0
	ClassReplication = 1
	ClassOperator    = 2
	ClassSequence    = 3
)

// NewFXY packs f, x and y into a code. Out of range arguments are truncated.
func NewFXY(f, x, y uint8) FXY {
	return FXY(uint16(f&0b11)<<14 | uint16(x&0b11_1111)<<8 | uint16(y))
}

// ParseFXY parses the six digit "FXXYYY" notation used by the WMO tables,
// e.g. "012001".
func ParseFXY(s string) (FXY, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("descriptor code %q must have 6 digits", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("descriptor code %q must be all digits", s)
		}
	}
	f, _ := strconv.Atoi(s[0:1])
	x, _ := strconv.Atoi(s[1:3])
	y, _ := strconv.Atoi(s[3:6])
	if f > 3 || x > 63 || y > 255 {
		return 0, fmt.Errorf("descriptor code %q out of range (F<=3, X<=63, Y<=255)", s)
	}
	return NewFXY(uint8(f), uint8(x), uint8(y)), nil
}

// F returns the descriptor class.
func (c FXY) F() uint8 { return uint8(c >> 14) }

// X returns the 6-bit category field.
func (c FXY) X() uint8 { return uint8(c>>8) & 0b11_1111 }

// Y returns the 8-bit entry field.
func (c FXY) Y() uint8 { return uint8(c) }

// String returns the code in "F XX YYY" form.
func (c FXY) String() string {
	return fmt.Sprintf("%d %02d %03d", c.F(), c.X(), c.Y())
}

// Descriptor is an immutable Table B element.
//
// A packed value R decodes to (R + reference) / 10^scale. The all-ones
// pattern for the element's width is reserved for missing data.
type Descriptor struct {
	code      FXY
	name      string
	units     string
	scale     int
	reference int64
	width     uint
}

// New returns a descriptor. The width must be at least 1.
func New(code FXY, name, units string, scale int, reference int64, width uint) (*Descriptor, error) {
	if width < 1 {
		return nil, fmt.Errorf("descriptor %s (%s): width must be at least 1", code, name)
	}
	return &Descriptor{
		code:      code,
		name:      name,
		units:     units,
		scale:     scale,
		reference: reference,
		width:     width,
	}, nil
}

// Code returns the FXY code the descriptor was registered under.
func (d *Descriptor) Code() FXY { return d.code }

// Name returns the element name.
func (d *Descriptor) Name() string { return d.name }

// Units returns the element units.
func (d *Descriptor) Units() string { return d.units }

// Scale returns the decimal scale.
func (d *Descriptor) Scale() int { return d.scale }

// Reference returns the reference value added to every packed integer.
func (d *Descriptor) Reference() int64 { return d.reference }

// Width returns the number of bits a value occupies.
func (d *Descriptor) Width() uint { return d.width }

// Character reports whether the element holds CCITT IA5 text.
func (d *Descriptor) Character() bool { return d.units == CharacterUnits }

// Numeric reports whether values of the element fit a uint64 and decode to
// a number. Character and over-wide elements are skipped by the decoder.
func (d *Descriptor) Numeric() bool {
	return !d.Character() && d.width <= MaxWidth
}

// Missing returns the reserved missing-value pattern (all ones).
func (d *Descriptor) Missing() uint64 {
	return AllOnes(d.width)
}

// Decode converts a packed integer to its physical value. The missing
// pattern, and any value of a non-numeric element, decodes to NaN.
func (d *Descriptor) Decode(raw uint64) float64 {
	if !d.Numeric() || raw == d.Missing() {
		return math.NaN()
	}
	return (float64(raw) + float64(d.reference)) / math.Pow10(d.scale)
}

// Encode converts a physical value to its packed integer, rounding to the
// nearest integer. NaN and values that cannot be represented in the
// descriptor's width are encoded as missing.
func (d *Descriptor) Encode(v float64) uint64 {
	if !d.Numeric() || math.IsNaN(v) || math.IsInf(v, 0) {
		return d.Missing()
	}
	raw := math.Round(v*math.Pow10(d.scale)) - float64(d.reference)
	if raw < 0 || raw >= float64(d.Missing()) {
		return d.Missing()
	}
	return uint64(raw)
}

// Rescale returns a descriptor whose scale and width are changed by the
// given deltas. When both deltas are zero d itself is returned.
func (d *Descriptor) Rescale(scaleDelta, widthDelta int) *Descriptor {
	if scaleDelta == 0 && widthDelta == 0 {
		return d
	}
	out := *d
	out.scale += scaleDelta
	out.width = uint(int(d.width) + widthDelta)
	return &out
}

// String returns the name and units, for diagnostics.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s [%s]", d.name, d.units)
}

// AllOnes returns 2^width - 1.
func AllOnes(width uint) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<width - 1
}
