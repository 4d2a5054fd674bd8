// Package bufrtest builds BUFR messages for tests.
package bufrtest

import (
	"encoding/binary"
	"time"

	"github.com/sdifrance/gobufr/bitio"
	"github.com/sdifrance/gobufr/descriptor"
)

// Message describes a message to encode. Zero values give an edition 3,
// uncompressed, single subset message without an optional section.
type Message struct {
	Edition     uint8
	MasterTable uint8
	Category    uint8
	Time        time.Time
	// Optional is the content of section 2; nil omits the section.
	Optional   []byte
	Observed   bool
	Compressed bool
	Subsets    int
	Codes      []descriptor.FXY
	// Data is the section 4 payload.
	Data []byte
	// End overrides the "7777" terminator.
	End string
}

func put3(b []byte, v int) {
	b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
}

// Bytes encodes the message.
func (m Message) Bytes() []byte {
	edition := m.Edition
	if edition == 0 {
		edition = 3
	}
	subsets := m.Subsets
	if subsets == 0 {
		subsets = 1
	}
	end := m.End
	if end == "" {
		end = "7777"
	}
	t := m.Time
	if t.IsZero() {
		t = time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	}

	var sec1 []byte
	if edition >= 4 {
		sec1 = make([]byte, 22)
		sec1[3] = m.MasterTable
		if m.Optional != nil {
			sec1[9] = 1 << 7
		}
		sec1[10] = m.Category
		binary.BigEndian.PutUint16(sec1[15:17], uint16(t.Year()))
		sec1[17], sec1[18], sec1[19], sec1[20], sec1[21] = byte(t.Month()), byte(t.Day()), byte(t.Hour()), byte(t.Minute()), byte(t.Second())
	} else {
		sec1 = make([]byte, 18)
		sec1[3] = m.MasterTable
		if m.Optional != nil {
			sec1[7] = 1 << 7
		}
		sec1[8] = m.Category
		sec1[12], sec1[13], sec1[14], sec1[15], sec1[16] = byte(t.Year()-1900), byte(t.Month()), byte(t.Day()), byte(t.Hour()), byte(t.Minute())
	}
	put3(sec1, len(sec1))

	var sec2 []byte
	if m.Optional != nil {
		sec2 = append(make([]byte, 4), m.Optional...)
		put3(sec2, len(sec2))
	}

	sec3 := make([]byte, 7+2*len(m.Codes))
	binary.BigEndian.PutUint16(sec3[4:6], uint16(subsets))
	if m.Observed {
		sec3[6] |= 1 << 7
	}
	if m.Compressed {
		sec3[6] |= 1 << 6
	}
	for i, c := range m.Codes {
		binary.BigEndian.PutUint16(sec3[7+2*i:], uint16(c))
	}
	if len(sec3)%2 == 1 && edition < 4 {
		sec3 = append(sec3, 0)
	}
	put3(sec3, len(sec3))

	sec4 := append(make([]byte, 4), m.Data...)
	put3(sec4, len(sec4))

	out := []byte("BUFR\x00\x00\x00\x00")
	out[7] = edition
	for _, sec := range [][]byte{sec1, sec2, sec3, sec4} {
		out = append(out, sec...)
	}
	out = append(out, end...)
	if edition >= 2 {
		put3(out[4:7], len(out))
	}
	return out
}

// Pack packs fields of the given widths, in order, into a payload.
func Pack(fields ...Field) []byte {
	var w bitio.Writer
	for _, f := range fields {
		w.WriteBits(f.Value, f.Width)
	}
	return w.Bytes()
}

// Field is a value and the number of bits it occupies.
type Field struct {
	Value uint64
	Width int
}

// Code is descriptor.NewFXY, for brevity in test tables.
func Code(f, x, y uint8) descriptor.FXY { return descriptor.NewFXY(f, x, y) }
