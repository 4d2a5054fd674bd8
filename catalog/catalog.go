// Package catalog holds the descriptor tables used to interpret BUFR
// messages.
//
// A Catalog combines BUFR Table A (data categories) with Tables B and D:
// every FXY code maps either to a leaf element descriptor or to an ordered
// sequence of child codes. Catalogs are read-only once constructed and may
// be shared between any number of decoders.
package catalog

import (
	"fmt"
	"sort"

	"github.com/sdifrance/gobufr/descriptor"
)

// Kind distinguishes the two kinds of catalog entries.
type Kind int

const (
	// KindInvalid is the zero Entry.
	KindInvalid Kind = iota
	// KindElement is a Table B leaf element.
	KindElement
	// KindSequence is a Table D expansion.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindSequence:
		return "sequence"
	default:
		return "invalid"
	}
}

// Entry is a catalog value. Exactly one of Leaf and Children is set.
type Entry struct {
	Leaf     *descriptor.Descriptor
	Children []descriptor.FXY
}

// Kind reports which field of the entry is populated.
func (e Entry) Kind() Kind {
	switch {
	case e.Leaf != nil && len(e.Children) == 0:
		return KindElement
	case e.Leaf == nil && len(e.Children) > 0:
		return KindSequence
	default:
		return KindInvalid
	}
}

// Catalog is an immutable set of descriptor tables.
type Catalog struct {
	categories map[uint8]string
	entries    map[descriptor.FXY]Entry
}

// New validates and copies the given tables into a Catalog.
//
// Elements must be registered under class 0 codes matching their own code,
// sequences under class 3 codes.
func New(categories map[uint8]string, entries map[descriptor.FXY]Entry) (*Catalog, error) {
	c := &Catalog{
		categories: make(map[uint8]string, len(categories)),
		entries:    make(map[descriptor.FXY]Entry, len(entries)),
	}
	for code, name := range categories {
		c.categories[code] = name
	}
	for code, e := range entries {
		switch e.Kind() {
		case KindElement:
			if code.F() != descriptor.ClassElement {
				return nil, fmt.Errorf("element %s registered under non-element code", code)
			}
			if got := e.Leaf.Code(); got != code {
				return nil, fmt.Errorf("element registered under %s has code %s", code, got)
			}
			c.entries[code] = Entry{Leaf: e.Leaf}
		case KindSequence:
			if code.F() != descriptor.ClassSequence {
				return nil, fmt.Errorf("sequence %s registered under non-sequence code", code)
			}
			c.entries[code] = Entry{Children: append([]descriptor.FXY(nil), e.Children...)}
		default:
			return nil, fmt.Errorf("entry %s must be exactly one of element or sequence", code)
		}
	}
	return c, nil
}

// CategoryName returns the Table A name of a data category.
func (c *Catalog) CategoryName(code uint8) (string, bool) {
	name, ok := c.categories[code]
	return name, ok
}

// Resolve looks up an element or sequence code.
//
// The returned Children slice is shared with the catalog and must not be
// modified.
func (c *Catalog) Resolve(code descriptor.FXY) (Entry, bool) {
	e, ok := c.entries[code]
	return e, ok
}

// Len returns the number of element and sequence entries.
func (c *Catalog) Len() int { return len(c.entries) }

// categoryCodes returns the Table A codes in ascending order.
func (c *Catalog) categoryCodes() []uint8 {
	out := make([]uint8, 0, len(c.categories))
	for code := range c.categories {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// codes returns the entry codes in ascending order.
func (c *Catalog) codes() []descriptor.FXY {
	out := make([]descriptor.FXY, 0, len(c.entries))
	for code := range c.entries {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
