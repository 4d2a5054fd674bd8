package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdifrance/gobufr/bufr"
	"github.com/sdifrance/gobufr/catalog"
	"github.com/sdifrance/gobufr/descriptor"
	"github.com/sdifrance/gobufr/internal/bufrtest"
)

func TestDump(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	msg, err := bufr.Decode(bufrtest.Message{
		Category: 0,
		Subsets:  3,
		Codes:    []descriptor.FXY{bufrtest.Code(0, 1, 1)},
		Data: bufrtest.Pack(
			bufrtest.Field{Value: 3, Width: 7},
			bufrtest.Field{Value: 127, Width: 7},
			bufrtest.Field{Value: 5, Width: 7},
		),
	}.Bytes(), c)
	require.NoError(t, err)

	var buf bytes.Buffer
	dump(&buf, 0, msg, 2)
	out := buf.String()
	assert.Contains(t, out, "message[0]: edition 3, category 0")
	assert.Contains(t, out, "3 subsets")
	assert.Contains(t, out, "WMO BLOCK NUMBER")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "... 1 more subsets")
	assert.NotContains(t, out, "subset 2\n")
}

func TestLoadCatalogDefault(t *testing.T) {
	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.Positive(t, c.Len())
}
