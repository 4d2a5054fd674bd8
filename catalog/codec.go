package catalog

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/sdifrance/gobufr/descriptor"
)

/*
Serialized catalog layout (MessagePack):

	array(4)
	  str     magic "gobufr-catalog"
	  uint16  schema version
	  map     Table A: uint8 category -> str name
	  array   entries, ascending by code; each entry is one of
	            array(7) [uint16 code, uint8 kindElement, str name, str units,
	                      int scale, int64 reference, uint width]
	            array(3) [uint16 code, uint8 kindSequence, array [uint16 child...]]
*/
const (
	magic         = "gobufr-catalog"
	schemaVersion = 1

	kindElementTag  = 1
	kindSequenceTag = 2
)

// LoadError reports a catalog resource that could not be loaded.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load catalog: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("load catalog: %s", e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Encode writes the catalog in its serialized form.
func (c *Catalog) Encode(w io.Writer) error {
	mw := msgp.NewWriter(w)
	if err := c.encode(mw); err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	return errors.Wrap(mw.Flush(), "encode catalog")
}

func (c *Catalog) encode(mw *msgp.Writer) error {
	if err := mw.WriteArrayHeader(4); err != nil {
		return err
	}
	if err := mw.WriteString(magic); err != nil {
		return err
	}
	if err := mw.WriteUint16(schemaVersion); err != nil {
		return err
	}

	if err := mw.WriteMapHeader(uint32(len(c.categories))); err != nil {
		return err
	}
	for _, code := range c.categoryCodes() {
		if err := mw.WriteUint8(code); err != nil {
			return err
		}
		if err := mw.WriteString(c.categories[code]); err != nil {
			return err
		}
	}

	codes := c.codes()
	if err := mw.WriteArrayHeader(uint32(len(codes))); err != nil {
		return err
	}
	for _, code := range codes {
		if err := encodeEntry(mw, code, c.entries[code]); err != nil {
			return errors.Wrapf(err, "entry %s", code)
		}
	}
	return nil
}

func encodeEntry(mw *msgp.Writer, code descriptor.FXY, e Entry) error {
	if e.Kind() == KindSequence {
		if err := mw.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := mw.WriteUint16(uint16(code)); err != nil {
			return err
		}
		if err := mw.WriteUint8(kindSequenceTag); err != nil {
			return err
		}
		if err := mw.WriteArrayHeader(uint32(len(e.Children))); err != nil {
			return err
		}
		for _, child := range e.Children {
			if err := mw.WriteUint16(uint16(child)); err != nil {
				return err
			}
		}
		return nil
	}

	d := e.Leaf
	if err := mw.WriteArrayHeader(7); err != nil {
		return err
	}
	if err := mw.WriteUint16(uint16(code)); err != nil {
		return err
	}
	if err := mw.WriteUint8(kindElementTag); err != nil {
		return err
	}
	if err := mw.WriteString(d.Name()); err != nil {
		return err
	}
	if err := mw.WriteString(d.Units()); err != nil {
		return err
	}
	if err := mw.WriteInt(d.Scale()); err != nil {
		return err
	}
	if err := mw.WriteInt64(d.Reference()); err != nil {
		return err
	}
	return mw.WriteUint(d.Width())
}

// Load reads a serialized catalog. Any failure is reported as a *LoadError;
// a catalog is never partially loaded.
func Load(r io.Reader) (*Catalog, error) {
	mr := msgp.NewReader(r)

	n, err := mr.ReadArrayHeader()
	if err != nil {
		return nil, &LoadError{"reading header", err}
	}
	if n != 4 {
		return nil, &LoadError{Reason: fmt.Sprintf("got %d top level fields, want 4", n)}
	}
	gotMagic, err := mr.ReadString()
	if err != nil {
		return nil, &LoadError{"reading magic", err}
	}
	if gotMagic != magic {
		return nil, &LoadError{Reason: fmt.Sprintf("magic = %q, want %q", gotMagic, magic)}
	}
	version, err := mr.ReadUint16()
	if err != nil {
		return nil, &LoadError{"reading schema version", err}
	}
	if version != schemaVersion {
		return nil, &LoadError{Reason: fmt.Sprintf("schema version %d, want %d", version, schemaVersion)}
	}

	ncat, err := mr.ReadMapHeader()
	if err != nil {
		return nil, &LoadError{"reading category table", err}
	}
	categories := make(map[uint8]string, ncat)
	for i := uint32(0); i < ncat; i++ {
		code, err := mr.ReadUint8()
		if err != nil {
			return nil, &LoadError{"reading category code", err}
		}
		name, err := mr.ReadString()
		if err != nil {
			return nil, &LoadError{fmt.Sprintf("reading name of category %d", code), err}
		}
		categories[code] = name
	}

	nent, err := mr.ReadArrayHeader()
	if err != nil {
		return nil, &LoadError{"reading descriptor table", err}
	}
	entries := make(map[descriptor.FXY]Entry, nent)
	for i := uint32(0); i < nent; i++ {
		code, e, err := decodeEntry(mr)
		if err != nil {
			return nil, &LoadError{fmt.Sprintf("reading descriptor entry %d", i), err}
		}
		if _, dup := entries[code]; dup {
			return nil, &LoadError{Reason: fmt.Sprintf("duplicate entry %s", code)}
		}
		entries[code] = e
	}

	c, err := New(categories, entries)
	if err != nil {
		return nil, &LoadError{"validating tables", err}
	}
	glog.V(1).Infof("loaded catalog with %d categories and %d descriptors", len(categories), len(entries))
	return c, nil
}

func decodeEntry(mr *msgp.Reader) (descriptor.FXY, Entry, error) {
	n, err := mr.ReadArrayHeader()
	if err != nil {
		return 0, Entry{}, err
	}
	raw, err := mr.ReadUint16()
	if err != nil {
		return 0, Entry{}, err
	}
	code := descriptor.FXY(raw)
	tag, err := mr.ReadUint8()
	if err != nil {
		return code, Entry{}, err
	}

	switch {
	case tag == kindSequenceTag && n == 3:
		nchild, err := mr.ReadArrayHeader()
		if err != nil {
			return code, Entry{}, err
		}
		children := make([]descriptor.FXY, nchild)
		for i := range children {
			child, err := mr.ReadUint16()
			if err != nil {
				return code, Entry{}, err
			}
			children[i] = descriptor.FXY(child)
		}
		return code, Entry{Children: children}, nil

	case tag == kindElementTag && n == 7:
		name, err := mr.ReadString()
		if err != nil {
			return code, Entry{}, err
		}
		units, err := mr.ReadString()
		if err != nil {
			return code, Entry{}, err
		}
		scale, err := mr.ReadInt()
		if err != nil {
			return code, Entry{}, err
		}
		reference, err := mr.ReadInt64()
		if err != nil {
			return code, Entry{}, err
		}
		width, err := mr.ReadUint()
		if err != nil {
			return code, Entry{}, err
		}
		d, err := descriptor.New(code, name, units, scale, reference, width)
		if err != nil {
			return code, Entry{}, err
		}
		return code, Entry{Leaf: d}, nil

	default:
		return code, Entry{}, fmt.Errorf("entry %s: kind tag %d with %d fields is not a known layout", code, tag, n)
	}
}

// LoadFile reads a serialized catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{"opening " + path, err}
	}
	defer f.Close()
	return Load(f)
}
