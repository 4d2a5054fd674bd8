package bufr

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/catalog"
	"github.com/sdifrance/gobufr/descriptor"
)

const (
	// maxSequenceDepth bounds Table D nesting.
	maxSequenceDepth = 32
	// maxResolved bounds the length of the expanded descriptor list.
	maxResolved = 1 << 20
)

// operatorNames lists the Table C operators that are recognised but not
// decoded.
var operatorNames = map[uint8]string{
	3:  "change reference values",
	4:  "add associated field",
	5:  "signify character",
	6:  "signify data width for local descriptor",
	7:  "increase scale, reference value and data width",
	8:  "change width of CCITT IA5 field",
	21: "data not present",
	22: "quality information follows",
	23: "substituted values operator",
	24: "first-order statistical values follow",
	25: "difference statistical values follow",
	32: "replaced/retained values follow",
	35: "cancel backward data reference",
	36: "define data present bit-map",
	37: "use defined data present bit-map",
}

// replication is a pending "repeat the next X descriptors Y times"
// operator.
type replication struct {
	remaining int // descriptors still to be read into the block
	times     int
	start     int // index of the block's first element in the output
}

// resolver expands the section 3 descriptor list into the flat list of
// elements that section 4 is packed against. The operator state is shared
// by every scope; replication is tracked separately in each scope.
type resolver struct {
	catalog *catalog.Catalog
	out     []*descriptor.Descriptor

	widthDelta int
	scaleDelta int

	expanding map[descriptor.FXY]bool
}

func newResolver(c *catalog.Catalog) *resolver {
	return &resolver{
		catalog:   c,
		expanding: map[descriptor.FXY]bool{},
	}
}

// resolve expands codes in a fresh replication scope.
func (r *resolver) resolve(codes []descriptor.FXY) error {
	var rep *replication
	for _, code := range codes {
		if err := r.expand(code, &rep); err != nil {
			return err
		}
	}
	if rep != nil {
		return formatErrorf(3, "replication starting at element %d is incomplete: %d of its descriptors missing", rep.start, rep.remaining)
	}
	return nil
}

func (r *resolver) expand(code descriptor.FXY, rep **replication) error {
	switch code.F() {
	case descriptor.ClassReplication:
		if code.Y() == 0 {
			return &UnsupportedFeatureError{Feature: fmt.Sprintf("delayed replication %s", code)}
		}
		if *rep != nil {
			return &UnsupportedFeatureError{Feature: fmt.Sprintf("nested replication %s", code)}
		}
		if code.X() == 0 {
			return formatErrorf(3, "replication %s of zero descriptors", code)
		}
		*rep = &replication{remaining: int(code.X()), times: int(code.Y()), start: len(r.out)}
		return nil

	case descriptor.ClassOperator:
		if err := r.operator(code); err != nil {
			return err
		}

	default:
		e, ok := r.catalog.Resolve(code)
		if !ok {
			return &UnknownDescriptorError{Code: code}
		}
		switch e.Kind() {
		case catalog.KindElement:
			if err := r.appendElement(e.Leaf); err != nil {
				return err
			}
		case catalog.KindSequence:
			if err := r.sequence(code, e.Children); err != nil {
				return err
			}
		default:
			return formatErrorf(3, "catalog entry %s is neither element nor sequence", code)
		}
	}

	return r.advance(rep)
}

func (r *resolver) operator(code descriptor.FXY) error {
	delta := int(code.Y()) - 128
	if code.Y() == 0 {
		// YYY = 0 cancels the operator.
		delta = 0
	}
	switch code.X() {
	case 1:
		r.widthDelta = delta
	case 2:
		r.scaleDelta = delta
	default:
		name, ok := operatorNames[code.X()]
		if !ok {
			name = "unknown operator"
		}
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("operator %s (%s)", code, name)}
	}
	glog.V(2).Infof("operator %s: width delta %d, scale delta %d", code, r.widthDelta, r.scaleDelta)
	return nil
}

func (r *resolver) appendElement(d *descriptor.Descriptor) error {
	if len(r.out) >= maxResolved {
		return formatErrorf(3, "expansion exceeds %d elements", maxResolved)
	}
	if d.Character() {
		// 201 and 202 do not apply to CCITT IA5 data.
		r.out = append(r.out, d)
		return nil
	}
	if w := int(d.Width()) + r.widthDelta; w < 1 {
		return formatErrorf(3, "element %s width %d%+d is less than 1", d.Code(), d.Width(), r.widthDelta)
	}
	r.out = append(r.out, d.Rescale(r.scaleDelta, r.widthDelta))
	return nil
}

func (r *resolver) sequence(code descriptor.FXY, children []descriptor.FXY) error {
	if r.expanding[code] {
		return formatErrorf(3, "sequence %s refers to itself", code)
	}
	if len(r.expanding) >= maxSequenceDepth {
		return formatErrorf(3, "sequence %s nested deeper than %d", code, maxSequenceDepth)
	}
	r.expanding[code] = true
	defer delete(r.expanding, code)

	if err := r.resolve(children); err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Reason = fmt.Sprintf("in sequence %s: %s", code, fe.Reason)
		}
		return err
	}
	return nil
}

// advance counts one descriptor against the pending replication and, once
// its block is complete, appends the remaining copies of the block.
func (r *resolver) advance(rep **replication) error {
	p := *rep
	if p == nil {
		return nil
	}
	p.remaining--
	if p.remaining > 0 {
		return nil
	}
	*rep = nil

	block := append([]*descriptor.Descriptor(nil), r.out[p.start:]...)
	if len(r.out)+len(block)*(p.times-1) > maxResolved {
		return formatErrorf(3, "expansion exceeds %d elements", maxResolved)
	}
	for i := 1; i < p.times; i++ {
		r.out = append(r.out, block...)
	}
	glog.V(2).Infof("replicated %d elements %d times", len(block), p.times)
	return nil
}
