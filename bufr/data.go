package bufr

import (
	"math"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/descriptor"
)

// localWidthBits is the size of the per-element bit count in compressed
// data.
const localWidthBits = 6

func newValues(n, subsets int) [][]float64 {
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, subsets)
	}
	return values
}

// decodeUncompressed decodes data packed subset after subset: every subset
// holds one value for each element, in descriptor order.
func decodeUncompressed(payload []byte, descs []*descriptor.Descriptor, subsets int) ([][]float64, error) {
	br := bitio.NewReader(payload)
	values := newValues(len(descs), subsets)
	for s := 0; s < subsets; s++ {
		for i, d := range descs {
			if !d.Numeric() {
				if err := br.Skip(int(d.Width())); err != nil {
					return nil, formatErrorf(4, "subset %d element %d (%s): %v", s, i, d.Code(), err)
				}
				values[i][s] = math.NaN()
				continue
			}
			raw, err := br.ReadBits(int(d.Width()))
			if err != nil {
				return nil, formatErrorf(4, "subset %d element %d (%s): %v", s, i, d.Code(), err)
			}
			values[i][s] = d.Decode(raw)
		}
	}
	logRemaining(br)
	return values, nil
}

// decodeCompressed decodes data packed element after element. Each element
// holds
//
//	R0        reference value, in the element's width
//	NBINC     6-bit width of the increments
//	I1...In   one increment of NBINC bits per subset
//
// A subset's value is R0 + Ii; an increment with all NBINC bits set is
// missing. With NBINC = 0 every subset has the value R0.
//
// For character elements NBINC counts octets rather than bits. Character
// and over-wide elements are skipped and decode to NaN.
func decodeCompressed(payload []byte, descs []*descriptor.Descriptor, subsets int) ([][]float64, error) {
	br := bitio.NewReader(payload)
	values := newValues(len(descs), subsets)
	for i, d := range descs {
		if !d.Numeric() {
			if err := skipCompressed(br, d, subsets); err != nil {
				return nil, formatErrorf(4, "element %d (%s): %v", i, d.Code(), err)
			}
			for s := range values[i] {
				values[i][s] = math.NaN()
			}
			continue
		}
		base, err := br.ReadBits(int(d.Width()))
		if err != nil {
			return nil, formatErrorf(4, "element %d (%s) reference: %v", i, d.Code(), err)
		}
		nbinc, err := br.ReadBits(localWidthBits)
		if err != nil {
			return nil, formatErrorf(4, "element %d (%s) increment width: %v", i, d.Code(), err)
		}
		width := int(nbinc)
		pad := descriptor.AllOnes(uint(width))
		for s := 0; s < subsets; s++ {
			inc, err := br.ReadBits(width)
			if err != nil {
				return nil, formatErrorf(4, "subset %d element %d (%s): %v", s, i, d.Code(), err)
			}
			if width > 0 && inc == pad {
				values[i][s] = math.NaN()
				continue
			}
			values[i][s] = d.Decode(base + inc)
		}
	}
	logRemaining(br)
	return values, nil
}

func skipCompressed(br *bitio.Reader, d *descriptor.Descriptor, subsets int) error {
	if err := br.Skip(int(d.Width())); err != nil {
		return err
	}
	nbinc, err := br.ReadBits(localWidthBits)
	if err != nil {
		return err
	}
	width := int(nbinc)
	if d.Character() {
		width *= 8
	}
	return br.Skip(width * subsets)
}

func logRemaining(br *bitio.Reader) {
	if glog.V(2) {
		glog.Infof("section 4: decoded %d bits, %d bits of padding", br.Pos(), br.Remaining())
	}
}
