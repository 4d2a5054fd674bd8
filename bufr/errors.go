package bufr

import (
	"fmt"

	"github.com/sdifrance/gobufr/descriptor"
)

// FormatError indicates a message that violates the BUFR layout: a bad
// magic number, a missing end section or inconsistent section lengths.
type FormatError struct {
	Section int
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bufr: section %d: %s", e.Section, e.Reason)
}

func formatErrorf(section int, format string, args ...interface{}) error {
	return &FormatError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedFeatureError indicates a valid message that uses a part of
// BUFR this decoder does not implement.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("bufr: unsupported feature: %s", e.Feature)
}

// UnknownDescriptorError indicates a code missing from the catalog.
type UnknownDescriptorError struct {
	Code descriptor.FXY
}

func (e *UnknownDescriptorError) Error() string {
	return fmt.Sprintf("bufr: unknown descriptor %06d (F=%d X=%d Y=%d)",
		int(e.F())*100000+int(e.X())*1000+int(e.Y()), e.F(), e.X(), e.Y())
}

// F returns the class of the unknown code.
func (e *UnknownDescriptorError) F() uint8 { return e.Code.F() }

// X returns the category of the unknown code.
func (e *UnknownDescriptorError) X() uint8 { return e.Code.X() }

// Y returns the entry of the unknown code.
func (e *UnknownDescriptorError) Y() uint8 { return e.Code.Y() }
