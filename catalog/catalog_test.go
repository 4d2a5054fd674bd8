package catalog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/sdifrance/gobufr/descriptor"
)

const (
	testCategories = "# code\tname\n0\tSurface data - land\n\n31\tOceanographic data\n"
	testElements   = "# FXY\tname\tunits\tscale\treference\twidth\n" +
		"012001\tTEMPERATURE/AIR TEMPERATURE\tK\t1\t0\t12\n" +
		"005002\tLATITUDE (COARSE ACCURACY)\tdeg\t2\t-9000\t15\n" +
		"006002\tLONGITUDE (COARSE ACCURACY)\tdeg\t2\t-18000\t16\n" +
		"001015\tSTATION OR SITE NAME\tCCITT IA5\t0\t0\t160\n"
	testSequences = "301023\t2\t\"005002 006002\"\n" +
		"# nested\n" +
		"309099\t2\t\"301023 012001\"\n"
)

func buildTest(t *testing.T) *Catalog {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.ReadCategories(strings.NewReader(testCategories)))
	require.NoError(t, b.ReadElements(strings.NewReader(testElements)))
	require.NoError(t, b.ReadSequences(strings.NewReader(testSequences)))
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func fxy(t *testing.T, s string) descriptor.FXY {
	t.Helper()
	code, err := descriptor.ParseFXY(s)
	require.NoError(t, err)
	return code
}

func TestBuilder(t *testing.T) {
	c := buildTest(t)
	assert.Equal(t, 6, c.Len())

	name, ok := c.CategoryName(31)
	assert.True(t, ok)
	assert.Equal(t, "Oceanographic data", name)
	_, ok = c.CategoryName(7)
	assert.False(t, ok)

	e, ok := c.Resolve(fxy(t, "012001"))
	require.True(t, ok)
	require.Equal(t, KindElement, e.Kind())
	assert.Equal(t, "K", e.Leaf.Units())
	assert.Equal(t, 1, e.Leaf.Scale())
	assert.Equal(t, uint(12), e.Leaf.Width())

	e, ok = c.Resolve(fxy(t, "001015"))
	require.True(t, ok)
	assert.Equal(t, uint(160), e.Leaf.Width())
	assert.True(t, e.Leaf.Character())

	e, ok = c.Resolve(fxy(t, "309099"))
	require.True(t, ok)
	require.Equal(t, KindSequence, e.Kind())
	assert.Equal(t, []descriptor.FXY{fxy(t, "301023"), fxy(t, "012001")}, e.Children)

	_, ok = c.Resolve(fxy(t, "063255"))
	assert.False(t, ok)
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		read  func(*Builder, string) error
		input string
	}{
		{"short element row", func(b *Builder, s string) error { return b.ReadElements(strings.NewReader(s)) }, "012001\tTEMP\tK\t1\t0\n"},
		{"bad width", func(b *Builder, s string) error { return b.ReadElements(strings.NewReader(s)) }, "012001\tTEMP\tK\t1\t0\t0\n"},
		{"width overflow", func(b *Builder, s string) error { return b.ReadElements(strings.NewReader(s)) }, "001015\tNAME\tCCITT IA5\t0\t0\t70000\n"},
		{"bad code", func(b *Builder, s string) error { return b.ReadElements(strings.NewReader(s)) }, "12001\tTEMP\tK\t1\t0\t12\n"},
		{"duplicate element", func(b *Builder, s string) error { return b.ReadElements(strings.NewReader(s)) }, "012001\tA\tK\t1\t0\t12\n012001\tB\tK\t1\t0\t12\n"},
		{"count mismatch", func(b *Builder, s string) error { return b.ReadSequences(strings.NewReader(s)) }, "301023\t3\t\"005002 006002\"\n"},
		{"bad category", func(b *Builder, s string) error { return b.ReadCategories(strings.NewReader(s)) }, "300\tToo big\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.read(NewBuilder(), tt.input))
		})
	}
}

func TestNewRejectsMalformedEntries(t *testing.T) {
	leaf, err := descriptor.New(descriptor.NewFXY(0, 12, 1), "T", "K", 1, 0, 12)
	require.NoError(t, err)

	for _, tt := range []struct {
		name    string
		entries map[descriptor.FXY]Entry
	}{
		{"empty entry", map[descriptor.FXY]Entry{descriptor.NewFXY(0, 12, 1): {}}},
		{"both kinds", map[descriptor.FXY]Entry{descriptor.NewFXY(0, 12, 1): {Leaf: leaf, Children: []descriptor.FXY{1}}}},
		{"element under sequence code", map[descriptor.FXY]Entry{descriptor.NewFXY(3, 12, 1): {Leaf: leaf}}},
		{"element under other code", map[descriptor.FXY]Entry{descriptor.NewFXY(0, 12, 2): {Leaf: leaf}}},
		{"sequence under element code", map[descriptor.FXY]Entry{descriptor.NewFXY(0, 1, 1): {Children: []descriptor.FXY{leaf.Code()}}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, tt.entries)
			assert.Error(t, err)
		})
	}
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	c := buildTest(t)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	got, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, c.Len(), got.Len())
	for _, code := range c.codes() {
		want, _ := c.Resolve(code)
		e, ok := got.Resolve(code)
		require.True(t, ok, "missing %s", code)
		require.Equal(t, want.Kind(), e.Kind())
		if want.Kind() == KindElement {
			assert.Equal(t, *want.Leaf, *e.Leaf)
		} else {
			assert.Equal(t, want.Children, e.Children)
		}
	}
	name, ok := got.CategoryName(0)
	assert.True(t, ok)
	assert.Equal(t, "Surface data - land", name)

	var again bytes.Buffer
	require.NoError(t, got.Encode(&again))
	assert.Equal(t, buf.Bytes(), again.Bytes(), "encoding is not deterministic")
}

func TestLoadErrors(t *testing.T) {
	header := func(magic string, version uint16) []byte {
		b := msgp.AppendArrayHeader(nil, 4)
		b = msgp.AppendString(b, magic)
		b = msgp.AppendUint16(b, version)
		b = msgp.AppendMapHeader(b, 0)
		return msgp.AppendArrayHeader(b, 0)
	}

	var valid bytes.Buffer
	require.NoError(t, buildTest(t).Encode(&valid))

	for _, tt := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not msgpack", []byte("BUFR tables")},
		{"wrong magic", header("other-catalog", schemaVersion)},
		{"wrong version", header(magic, schemaVersion+1)},
		{"truncated", valid.Bytes()[:valid.Len()/2]},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tt.data))
			var le *LoadError
			assert.True(t, errors.As(err, &le), "got %v, want *LoadError", err)
		})
	}

	_, err := Load(bytes.NewReader(header(magic, schemaVersion)))
	assert.NoError(t, err, "empty tables are a valid catalog")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(t.TempDir() + "/missing.cat")
	var le *LoadError
	assert.True(t, errors.As(err, &le))
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	name, ok := c.CategoryName(1)
	assert.True(t, ok)
	assert.Equal(t, "Surface data - sea", name)

	e, ok := c.Resolve(fxy(t, "301025"))
	require.True(t, ok)
	assert.Equal(t, KindSequence, e.Kind())
	for _, child := range e.Children {
		_, ok := c.Resolve(child)
		assert.True(t, ok, "child %s of 301025 not in catalog", child)
	}

	e, ok = c.Resolve(fxy(t, "001019"))
	require.True(t, ok)
	assert.Equal(t, uint(256), e.Leaf.Width())
	assert.True(t, e.Leaf.Character())

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, c, again)
}
