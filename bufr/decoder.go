// Package bufr decodes WMO FM 94 BUFR messages.
//
// BUFR is specified in WMO-No. 306 Manual on Codes, Volume I.2:
// https://library.wmo.int/idurl/4/35625. A message is made of six sections:
//
//	0 Indicator section ("BUFR", total length, edition)
//	1 Identification section
//	2 Optional section
//	3 Data description section (the descriptors the data is packed against)
//	4 Data section
//	5 End section ("7777")
//
// Only the decoding direction is implemented. Delayed replication, nested
// replication, local master tables and most Table C operators are rejected
// with an *UnsupportedFeatureError.
package bufr

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sdifrance/gobufr/catalog"
	"github.com/sdifrance/gobufr/descriptor"
)

type state int

const (
	stateStart state = iota
	stateOpened
	stateDone
	stateFailed
)

// Decoder decodes BUFR messages from a stream.
//
// Open reads sections 0 to 3 and resolves the data descriptors; Read then
// decodes sections 4 and 5. The pair may be repeated to decode consecutive
// messages from the same stream. A Decoder is not safe for concurrent use,
// but any number of Decoders may share one Catalog.
type Decoder struct {
	r       io.Reader
	catalog *catalog.Catalog

	state state
	// Offset of the current message in the stream and bytes consumed from
	// it so far.
	origin   int64
	consumed int64

	indicator      indicatorSection
	identification identificationSection
	description    dataDescriptionSection
	length         int64
	descriptors    []*descriptor.Descriptor
	values         [][]float64
	// Whether length was declared in section 0 rather than derived from
	// the stream size.
	declared bool
}

// NewDecoder returns a Decoder reading from r and resolving descriptors
// against c.
func NewDecoder(r io.Reader, c *catalog.Catalog) *Decoder {
	return &Decoder{r: r, catalog: c}
}

// Message is the decoded content of one BUFR message.
type Message struct {
	Edition      uint8
	Time         time.Time
	Category     uint8
	CategoryName string
	Observed     bool
	Compressed   bool
	Subsets      int
	// Descriptors is the expanded element list; Values[i] holds one value
	// per subset for Descriptors[i], NaN where missing.
	Descriptors []*descriptor.Descriptor
	Values      [][]float64
}

// Decode decodes a single message held in memory.
func Decode(data []byte, c *catalog.Catalog) (*Message, error) {
	d := NewDecoder(bytes.NewReader(data), c)
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d.Read()
}

// Open reads the indicator, identification, optional and data description
// sections of the next message and resolves its descriptors.
func (d *Decoder) Open() error {
	d.reset()
	d.state = stateFailed
	if err := d.open(); err != nil {
		return err
	}
	d.state = stateOpened
	return nil
}

func (d *Decoder) reset() {
	d.origin += d.consumed
	if s, ok := d.r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			d.origin = pos
		}
	}
	d.consumed = 0
	d.indicator = indicatorSection{}
	d.identification = identificationSection{}
	d.description = dataDescriptionSection{}
	d.length = 0
	d.declared = false
	d.descriptors = nil
	d.values = nil
}

func (d *Decoder) open() error {
	glog.V(1).Infof("section 0 @ byte offset %d", d.origin)
	buf, err := d.readFull(0, 4)
	if err != nil {
		return err
	}
	if got, want := string(buf), "BUFR"; got != want {
		return formatErrorf(0, "first four bytes = %q, want %q", got, want)
	}
	rest, err := d.readFull(0, indicatorLength-4)
	if err != nil {
		return err
	}
	if err := d.indicator.parseBytes(append(buf, rest...)); err != nil {
		return err
	}
	if d.indicator.messageLength != 0 {
		d.length = int64(d.indicator.messageLength)
		d.declared = true
	} else {
		d.length = d.streamLength()
	}
	glog.V(1).Infof("BUFR edition %d, message length %d", d.indicator.edition, d.length)

	sec1, err := d.readSection(1, identificationLength(d.indicator.edition))
	if err != nil {
		return err
	}
	if err := d.identification.parseBytes(sec1, d.indicator.edition); err != nil {
		return err
	}
	if d.identification.masterTable != 0 {
		return &UnsupportedFeatureError{Feature: "master table " + strconv.Itoa(int(d.identification.masterTable))}
	}
	glog.V(1).Infof("section 1: category %d, time %v", d.identification.dataCategory, d.identification.time)

	if d.identification.optionalSectionIncluded() {
		sec2, err := d.readSection(2, 4)
		if err != nil {
			return err
		}
		glog.V(1).Infof("section 2: skipped %d octets", len(sec2))
	}

	sec3, err := d.readSection(3, 8)
	if err != nil {
		return err
	}
	if err := d.description.parseBytes(sec3); err != nil {
		return err
	}

	res := newResolver(d.catalog)
	if err := res.resolve(d.description.codes); err != nil {
		return err
	}
	d.descriptors = res.out
	glog.V(1).Infof("section 3: %d subsets, compressed=%v, %d descriptors expanded to %d elements",
		d.description.subsets, d.description.compressed(), len(d.description.codes), len(d.descriptors))
	return nil
}

// Read decodes the data and end sections of a message opened with Open.
func (d *Decoder) Read() (*Message, error) {
	if d.state != stateOpened {
		return nil, errors.New("bufr: Read called without a successful Open")
	}
	d.state = stateFailed

	sec4, err := d.readSection(4, 4)
	if err != nil {
		return nil, err
	}
	payload := sec4[4:]
	var values [][]float64
	if d.description.compressed() {
		values, err = decodeCompressed(payload, d.descriptors, d.description.subsets)
	} else {
		values, err = decodeUncompressed(payload, d.descriptors, d.description.subsets)
	}
	if err != nil {
		return nil, err
	}

	end, err := d.readFull(5, len(endMarker))
	if err != nil {
		return nil, err
	}
	if got, want := string(end), endMarker; got != want {
		return nil, formatErrorf(5, "got end section %q, want %q", got, want)
	}
	if d.lengthMismatch() {
		glog.Warningf("consumed %d bytes, expected to consume %d based on message length", d.consumed, d.length)
	}

	d.values = values
	d.state = stateDone
	return d.message(), nil
}

func (d *Decoder) message() *Message {
	return &Message{
		Edition:      d.Edition(),
		Time:         d.Time(),
		Category:     d.Category(),
		CategoryName: d.CategoryName(),
		Observed:     d.Observed(),
		Compressed:   d.Compressed(),
		Subsets:      d.Subsets(),
		Descriptors:  d.descriptors,
		Values:       d.values,
	}
}

// lengthMismatch reports whether the bytes consumed differ from the declared
// message length. A length derived from the stream size spans any following
// messages, so it is never compared.
func (d *Decoder) lengthMismatch() bool {
	return d.declared && d.consumed != d.length
}

// readFull reads exactly n bytes into a new buffer.
func (d *Decoder) readFull(section, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(d.r, buf)
	d.consumed += int64(read)
	if err != nil {
		return nil, errors.Wrapf(err, "bufr: reading section %d", section)
	}
	return buf, nil
}

// readSection reads a whole section whose first three octets hold its
// length.
func (d *Decoder) readSection(section, minLength int) ([]byte, error) {
	glog.V(1).Infof("section %d @ byte offset %d", section, d.origin+d.consumed)
	head, err := d.readFull(section, 3)
	if err != nil {
		return nil, err
	}
	n := int(parse3ByteUint(head[0], head[1], head[2]))
	if n < minLength {
		return nil, formatErrorf(section, "section length %d, want at least %d", n, minLength)
	}
	if d.length != 0 && d.consumed-3+int64(n) > d.length {
		return nil, formatErrorf(section, "section length %d runs past the end of the %d byte message", n, d.length)
	}
	rest, err := d.readFull(section, n-3)
	if err != nil {
		return nil, err
	}
	return append(head, rest...), nil
}

// streamLength returns the bytes left in the stream from the start of the
// message, or 0 if the stream size is unknown.
func (d *Decoder) streamLength() int64 {
	s, ok := d.r.(io.Seeker)
	if !ok {
		return 0
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		glog.Warningf("could not restore stream position: %v", err)
		return 0
	}
	return end - d.origin
}

// Edition returns the BUFR edition number.
func (d *Decoder) Edition() uint8 { return d.indicator.edition }

// Length returns the message length in octets, declared or derived from
// the stream size; 0 if neither is known.
func (d *Decoder) Length() int64 { return d.length }

// Time returns the section 1 date and time, in UTC.
func (d *Decoder) Time() time.Time { return d.identification.time }

// Category returns the Table A data category.
func (d *Decoder) Category() uint8 { return d.identification.dataCategory }

// CategoryName returns the Table A name of the data category, or "" if the
// catalog does not know it.
func (d *Decoder) CategoryName() string {
	name, _ := d.catalog.CategoryName(d.identification.dataCategory)
	return name
}

// Observed reports whether the message holds observed, rather than
// predicted, data.
func (d *Decoder) Observed() bool { return d.description.observed() }

// Compressed reports whether section 4 uses the compressed layout.
func (d *Decoder) Compressed() bool { return d.description.compressed() }

// Subsets returns the number of data subsets.
func (d *Decoder) Subsets() int { return d.description.subsets }

// Descriptors returns the expanded element list. It must not be modified.
func (d *Decoder) Descriptors() []*descriptor.Descriptor { return d.descriptors }

// Values returns the decoded values after a successful Read, one slice per
// element.
func (d *Decoder) Values() [][]float64 { return d.values }
