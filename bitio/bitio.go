// Package bitio reads and writes unsigned integers of arbitrary bit width.
//
// Bits are packed MSB-first within each octet, as required by WMO binary
// codes: "bit 1 is the most significant and bit 8 is the least significant
// bit" of an octet.
package bitio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInsufficientBits is returned when a read runs past the end of the data.
var ErrInsufficientBits = errors.New("insufficient bits in stream")

// Reader reads bit fields from a byte slice.
type Reader struct {
	data []byte
	pos  int // current bit offset
}

// NewReader returns a Reader positioned at the first bit of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the number of bits consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total number of bits in the underlying data.
func (r *Reader) Len() int { return len(r.data) * 8 }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return r.Len() - r.pos }

// ReadBits reads n bits, 0 <= n <= 64. Reading zero bits returns 0.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("invalid bit count %d (must be 0-64)", n)
	}
	if n == 0 {
		return 0, nil
	}
	if r.pos+n > r.Len() {
		return 0, fmt.Errorf("read %d bits at bit offset %d of %d: %w", n, r.pos, r.Len(), ErrInsufficientBits)
	}

	if r.pos%8 == 0 {
		off := r.pos / 8
		switch n {
		case 8:
			r.pos += n
			return uint64(r.data[off]), nil
		case 16:
			r.pos += n
			return uint64(binary.BigEndian.Uint16(r.data[off:])), nil
		case 32:
			r.pos += n
			return uint64(binary.BigEndian.Uint32(r.data[off:])), nil
		}
	}

	var v uint64
	for n > 0 {
		byteIdx := r.pos / 8
		bitIdx := r.pos % 8
		// Take as many bits as remain in the current octet.
		take := 8 - bitIdx
		if take > n {
			take = n
		}
		b := uint64(r.data[byteIdx]>>(8-bitIdx-take)) & (1<<take - 1)
		v = v<<take | b
		r.pos += take
		n -= take
	}
	return v, nil
}

// Skip advances n bits without decoding them. Unlike ReadBits, n may
// exceed 64.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("invalid bit count %d", n)
	}
	if r.pos+n > r.Len() {
		return fmt.Errorf("skip %d bits at bit offset %d of %d: %w", n, r.pos, r.Len(), ErrInsufficientBits)
	}
	r.pos += n
	return nil
}

// Writer packs bit fields into a growing byte slice.
type Writer struct {
	data []byte
	pos  int
}

// WriteBits appends the low n bits of v, 0 <= n <= 64.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.pos%8 == 0 {
			w.data = append(w.data, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.data[w.pos/8] |= 1 << (7 - uint(w.pos%8))
		}
		w.pos++
	}
}

// Pos returns the number of bits written.
func (w *Writer) Pos() int { return w.pos }

// Bytes returns the written data. A partial final octet is zero padded.
func (w *Writer) Bytes() []byte { return w.data }
