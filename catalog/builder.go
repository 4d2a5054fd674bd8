package catalog

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/descriptor"
)

// Builder assembles a Catalog from the tab separated ASCII tables kept
// under tables/. It is used by the bufrtables command and by Default; the
// decoder itself only ever sees the finished Catalog.
//
// Table A lines hold "code<TAB>name". Table B lines hold
// "FXY<TAB>name<TAB>units<TAB>scale<TAB>reference<TAB>width". Table D lines
// hold "FXY<TAB>count<TAB>\"child child ...\"". Blank lines and lines
// starting with '#' are ignored.
type Builder struct {
	categories map[uint8]string
	entries    map[descriptor.FXY]Entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		categories: map[uint8]string{},
		entries:    map[descriptor.FXY]Entry{},
	}
}

func newTableReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// readTable calls fn for each record, annotating errors with the line.
func readTable(r io.Reader, table string, fn func(fields []string) error) error {
	cr := newTableReader(r)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "table %s", table)
		}
		line, _ := cr.FieldPos(0)
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		if err := fn(rec); err != nil {
			return errors.Wrapf(err, "table %s line %d", table, line)
		}
	}
}

// ReadCategories adds Table A entries.
func (b *Builder) ReadCategories(r io.Reader) error {
	return readTable(r, "A", func(f []string) error {
		if len(f) != 2 {
			return errors.Errorf("got %d columns, want 2", len(f))
		}
		code, err := strconv.ParseUint(f[0], 10, 8)
		if err != nil {
			return errors.Wrap(err, "category code")
		}
		if _, dup := b.categories[uint8(code)]; dup {
			return errors.Errorf("duplicate category %d", code)
		}
		b.categories[uint8(code)] = f[1]
		return nil
	})
}

// ReadElements adds Table B entries.
func (b *Builder) ReadElements(r io.Reader) error {
	return readTable(r, "B", func(f []string) error {
		if len(f) != 6 {
			return errors.Errorf("got %d columns, want 6", len(f))
		}
		code, err := descriptor.ParseFXY(f[0])
		if err != nil {
			return err
		}
		scale, err := strconv.Atoi(f[3])
		if err != nil {
			return errors.Wrap(err, "scale")
		}
		reference, err := strconv.ParseInt(f[4], 10, 64)
		if err != nil {
			return errors.Wrap(err, "reference")
		}
		width, err := strconv.ParseUint(f[5], 10, 16)
		if err != nil {
			return errors.Wrap(err, "width")
		}
		d, err := descriptor.New(code, f[1], f[2], scale, reference, uint(width))
		if err != nil {
			return err
		}
		return b.add(code, Entry{Leaf: d})
	})
}

// ReadSequences adds Table D entries.
func (b *Builder) ReadSequences(r io.Reader) error {
	return readTable(r, "D", func(f []string) error {
		if len(f) != 3 {
			return errors.Errorf("got %d columns, want 3", len(f))
		}
		code, err := descriptor.ParseFXY(f[0])
		if err != nil {
			return err
		}
		count, err := strconv.Atoi(f[1])
		if err != nil {
			return errors.Wrap(err, "child count")
		}
		fields := strings.Fields(f[2])
		if len(fields) != count {
			return errors.Errorf("sequence %s declares %d children, lists %d", code, count, len(fields))
		}
		children := make([]descriptor.FXY, len(fields))
		for i, s := range fields {
			if children[i], err = descriptor.ParseFXY(s); err != nil {
				return err
			}
		}
		return b.add(code, Entry{Children: children})
	})
}

func (b *Builder) add(code descriptor.FXY, e Entry) error {
	if _, dup := b.entries[code]; dup {
		return errors.Errorf("duplicate descriptor %s", code)
	}
	b.entries[code] = e
	return nil
}

// Build returns the assembled catalog.
func (b *Builder) Build() (*Catalog, error) {
	return New(b.categories, b.entries)
}
