// Package bufrio reads files containing any number of BUFR messages.
//
// Messages may be separated by zero padding or by telecommunication
// headers; everything between the end of one message and the next "BUFR"
// is skipped.
package bufrio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/bufr"
	"github.com/sdifrance/gobufr/catalog"
)

var magic = []byte("BUFR")

// File is the decoded content of a BUFR file.
type File struct {
	messages []*bufr.Message
}

// Messages returns the messages in file order.
func (f *File) Messages() []*bufr.Message {
	return f.messages
}

// ReadFile decodes every message in r.
func ReadFile(r io.Reader, c *catalog.Catalog) (*File, error) {
	var messages []*bufr.Message

	rr := bufio.NewReader(r)
	offset := 0
	for {
		skipCount, err := skipToMagic(rr)
		offset += skipCount
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &File{messages}, nil
			}
			return nil, fmt.Errorf("error parsing file: %w", err)
		}
		glog.V(1).Infof("reading message starting at byte offset %d", offset)

		messageLen, err := peekLength(rr)
		if err != nil {
			return nil, fmt.Errorf("error encountered when expecting a BUFR message @ byte offset %d: %w", offset, err)
		}

		var msg *bufr.Message
		if messageLen > 0 {
			messageBytes := make([]byte, messageLen)
			if readCount, err := io.ReadFull(rr, messageBytes); err != nil {
				return nil, fmt.Errorf("error while reading message of expected length %d; only read %d bytes: %w", messageLen, readCount, err)
			}
			msg, err = bufr.Decode(messageBytes, c)
		} else {
			// Edition 0 and 1 messages carry no length. Decode straight from
			// the stream; the decoder stops after the end section.
			counter := &countingReader{r: rr}
			msg, err = decodeStream(counter, c)
			messageLen = counter.n
		}
		if err != nil {
			return nil, fmt.Errorf("error reading BUFR message @ byte offset %d: %w", offset, err)
		}
		messages = append(messages, msg)
		offset += messageLen
	}
}

func decodeStream(r io.Reader, c *catalog.Catalog) (*bufr.Message, error) {
	d := bufr.NewDecoder(r, c)
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d.Read()
}

// skipToMagic discards bytes until the reader is positioned at "BUFR".
func skipToMagic(rr *bufio.Reader) (int, error) {
	skipCount, junk := 0, 0
	defer func() {
		if junk > 0 {
			glog.Warningf("skipped %d non-zero bytes between messages", junk)
		}
	}()
	for {
		head, err := rr.Peek(len(magic))
		if bytes.Equal(head, magic) {
			return skipCount, nil
		}
		if err != nil {
			if len(head) > 0 {
				// Trailing bytes too short to hold a message.
				n, _ := rr.Discard(len(head))
				skipCount += n
			}
			return skipCount, err
		}
		b, err := rr.ReadByte()
		if err != nil {
			return skipCount, err
		}
		skipCount++
		if b != 0 {
			junk++
		}
	}
}

// peekLength returns the declared length of the message at the reader's
// position, or 0 for editions that do not declare one.
func peekLength(rr *bufio.Reader) (int, error) {
	data, err := rr.Peek(8)
	if err != nil {
		return 0, fmt.Errorf("error while expecting BUFR indicator section: %w", err)
	}
	edition := data[7]
	if edition < 2 {
		return 0, nil
	}
	length := int(data[4])<<16 | int(data[5])<<8 | int(data[6])
	if length < 8 {
		return 0, fmt.Errorf("edition %d message declares length %d", edition, length)
	}
	return length, nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
