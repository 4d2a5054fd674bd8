package bufrio

import (
	"bytes"
	"math"
	"testing"

	"github.com/sdifrance/gobufr/catalog"
	"github.com/sdifrance/gobufr/descriptor"
	"github.com/sdifrance/gobufr/internal/bufrtest"
)

var (
	temperature = bufrtest.Code(0, 12, 1)
	blockNumber = bufrtest.Code(0, 1, 1)
)

func message(edition uint8, code descriptor.FXY, value uint64, width int) []byte {
	return bufrtest.Message{
		Edition: edition,
		Codes:   []descriptor.FXY{code},
		Data:    bufrtest.Pack(bufrtest.Field{Value: value, Width: width}),
	}.Bytes()
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error: %v", err)
	}
	return c
}

func TestReadFile(t *testing.T) {
	var file []byte
	file = append(file, 0, 0, 0)
	file = append(file, message(3, temperature, 2731, 12)...)
	file = append(file, "\r\r\nISMD01 EGRR 041200\r\r\n"...)
	file = append(file, message(4, blockNumber, 3, 7)...)
	file = append(file, 0, 0)
	file = append(file, message(1, temperature, 2500, 12)...)
	file = append(file, "77"...)

	got, err := ReadFile(bytes.NewReader(file), defaultCatalog(t))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	msgs := got.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, tt := range []struct {
		edition uint8
		value   float64
	}{
		{3, 273.1},
		{4, 3},
		{1, 250},
	} {
		if got := msgs[i].Edition; got != tt.edition {
			t.Errorf("message %d: edition = %d, want %d", i, got, tt.edition)
		}
		if got := msgs[i].Values[0][0]; got != tt.value {
			t.Errorf("message %d: value = %v, want %v", i, got, tt.value)
		}
	}
}

func TestReadFileStationName(t *testing.T) {
	var fields []bufrtest.Field
	for i := 0; i < 20; i++ {
		fields = append(fields, bufrtest.Field{Value: ' ', Width: 8})
	}
	fields = append(fields, bufrtest.Field{Value: 2731, Width: 12})
	data := bufrtest.Message{
		Codes: []descriptor.FXY{bufrtest.Code(0, 1, 15), temperature},
		Data:  bufrtest.Pack(fields...),
	}.Bytes()

	got, err := ReadFile(bytes.NewReader(data), defaultCatalog(t))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	msg := got.Messages()[0]
	if v := msg.Values[0][0]; !math.IsNaN(v) {
		t.Errorf("station name = %v, want NaN", v)
	}
	if got, want := msg.Values[1][0], 273.1; got != want {
		t.Errorf("temperature = %v, want %v", got, want)
	}
}

func TestReadFileEmpty(t *testing.T) {
	got, err := ReadFile(bytes.NewReader([]byte{0, 0, 0, 0, 0}), defaultCatalog(t))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if n := len(got.Messages()); n != 0 {
		t.Errorf("got %d messages, want 0", n)
	}
}

func TestReadFileErrors(t *testing.T) {
	valid := message(3, temperature, 2731, 12)
	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"truncated message", valid[:len(valid)-6]},
		{"truncated indicator", []byte("BUFR\x00\x00")},
		{"unknown descriptor", message(3, bufrtest.Code(0, 63, 1), 1, 8)},
		{"bad second message", append(append([]byte{}, valid...), message(3, temperature, 1, 12)[:30]...)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFile(bytes.NewReader(tt.data), defaultCatalog(t)); err == nil {
				t.Errorf("ReadFile() succeeded, want error")
			}
		})
	}
}
