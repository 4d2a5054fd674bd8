package bufr

import (
	"encoding/binary"
	"time"

	"github.com/sdifrance/gobufr/descriptor"
)

const (
	indicatorLength = 8
	endMarker       = "7777"
)

type indicatorSection struct {
	edition uint8
	// Total length of the message in octets, 0 when the edition does not
	// carry one.
	messageLength uint32
}

func (s *indicatorSection) parseBytes(data []byte) error {
	/* WMO-No. 306 Vol I.2, Regulation 94.1

	Section 0 – Indicator section
	Octet No. Contents
	1–4 BUFR (coded according to the CCITT International Alphabet No. 5)
	5–7 Total length of BUFR message, in octets (including Section 0)
	8   BUFR edition number
	*/
	if got, want := string(data[0:4]), "BUFR"; got != want {
		return formatErrorf(0, "first four bytes = %q, want %q", got, want)
	}
	s.edition = data[7]
	if s.edition >= 2 {
		s.messageLength = parse3ByteUint(data[4], data[5], data[6])
		if int(s.messageLength) < indicatorLength+len(endMarker) {
			return formatErrorf(0, "declared message length %d is too short", s.messageLength)
		}
	}
	return nil
}

// Code table 1 style flags of section 1.
const optionalSectionIncluded = 1 << 7

type identificationSection struct {
	masterTable  uint8
	flags        uint8
	dataCategory uint8
	time         time.Time
}

// identificationLength returns the minimum length of section 1.
func identificationLength(edition uint8) int {
	if edition >= 4 {
		return 22
	}
	return 18
}

func (s *identificationSection) parseBytes(data []byte, edition uint8) error {
	/* Editions 2 and 3

	Octet No. Contents
	1–3   Length of section
	4     BUFR master table (zero if standard WMO FM 94 BUFR tables are used)
	5–6   Originating/generating centre
	7     Update sequence number
	8     Bit 1 = 0 No optional section, = 1 Optional section follows
	9     Data category (Table A)
	10    Data category sub-type
	11    Version number of master tables used
	12    Version number of local tables used
	13    Year of century
	14    Month
	15    Day
	16    Hour
	17    Minute
	18–   Reserved for local use by ADP centres

	Edition 4

	4     BUFR master table
	5–6   Originating/generating centre
	7–8   Originating/generating sub-centre
	9     Update sequence number
	10    Bit 1 = 0 No optional section, = 1 Optional section follows
	11    Data category (Table A)
	12    International data sub-category
	13    Local sub-category
	14    Version number of master table
	15    Version number of local tables
	16–17 Year (4 digits)
	18    Month
	19    Day
	20    Hour
	21    Minute
	22    Second
	*/
	s.masterTable = data[3]

	var year, month, day, hour, minute, second int
	if edition >= 4 {
		s.flags = data[9]
		s.dataCategory = data[10]
		year = int(binary.BigEndian.Uint16(data[15:17]))
		month, day, hour, minute, second = int(data[17]), int(data[18]), int(data[19]), int(data[20]), int(data[21])
	} else {
		s.flags = data[7]
		s.dataCategory = data[8]
		year = 1900 + int(data[12])
		month, day, hour, minute = int(data[13]), int(data[14]), int(data[15]), int(data[16])
	}

	if month < 1 || month > 12 {
		return formatErrorf(1, "month = %d, want 1-12", month)
	}
	if day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return formatErrorf(1, "invalid date/time %02d %02d:%02d:%02d", day, hour, minute, second)
	}
	s.time = time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if s.time.Day() != day {
		return formatErrorf(1, "day %d does not exist in %s %d", day, time.Month(month), year)
	}
	return nil
}

func (s *identificationSection) optionalSectionIncluded() bool {
	return s.flags&optionalSectionIncluded != 0
}

const (
	observedData   = 1 << 7
	compressedData = 1 << 6
)

type dataDescriptionSection struct {
	subsets int
	flags   uint8
	codes   []descriptor.FXY
}

func (s *dataDescriptionSection) parseBytes(data []byte) error {
	/* Section 3 – Data description section

	Octet No. Contents
	1–3 Length of section
	4   Set to zero (reserved)
	5–6 Number of data subsets
	7   Bit 1 = 1 observed data, = 0 other data
	    Bit 2 = 1 compressed data, = 0 non-compressed data
	8–  A collection of element descriptors, replication descriptors,
	    operator descriptors and sequence descriptors
	*/
	s.subsets = int(binary.BigEndian.Uint16(data[4:6]))
	s.flags = data[6]

	// Sections are padded to an even number of octets in editions up to 3,
	// so a trailing odd octet is not part of a descriptor.
	body := data[7:]
	s.codes = make([]descriptor.FXY, len(body)/2)
	for i := range s.codes {
		s.codes[i] = descriptor.FXY(binary.BigEndian.Uint16(body[2*i:]))
	}
	if len(s.codes) == 0 {
		return formatErrorf(3, "no data descriptors")
	}
	return nil
}

func (s *dataDescriptionSection) observed() bool {
	return s.flags&observedData != 0
}

func (s *dataDescriptionSection) compressed() bool {
	return s.flags&compressedData != 0
}

func parse3ByteUint(byte0, byte1, byte2 byte) uint32 {
	return binary.BigEndian.Uint32([]byte{0, byte0, byte1, byte2})
}
