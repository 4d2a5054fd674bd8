package catalog

import (
	"embed"
	"io"
	"sync"
)

//go:embed tables/*.tsv
var tables embed.FS

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns a catalog built from the WMO table subset embedded in
// this package. It is built once and shared.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = buildEmbedded()
	})
	return defaultCatalog, defaultErr
}

func buildEmbedded() (*Catalog, error) {
	b := NewBuilder()
	for _, t := range []struct {
		file string
		read func(*Builder, io.Reader) error
	}{
		{"tables/table_a.tsv", (*Builder).ReadCategories},
		{"tables/table_b.tsv", (*Builder).ReadElements},
		{"tables/table_d.tsv", (*Builder).ReadSequences},
	} {
		f, err := tables.Open(t.file)
		if err != nil {
			return nil, &LoadError{"opening embedded " + t.file, err}
		}
		err = t.read(b, f)
		f.Close()
		if err != nil {
			return nil, &LoadError{"parsing embedded " + t.file, err}
		}
	}
	c, err := b.Build()
	if err != nil {
		return nil, &LoadError{"validating embedded tables", err}
	}
	return c, nil
}
