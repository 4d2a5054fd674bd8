// Command bufrtables compiles tab-separated BUFR tables into the catalog
// format read by catalog.LoadFile.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/catalog"
)

var (
	categories = flag.String("categories", "", "Path to the Table A (data category) file.")
	elements   = flag.String("elements", "", "Path to the Table B (element) file.")
	sequences  = flag.String("sequences", "", "Path to the Table D (sequence) file.")
	output     = flag.String("output", "", "Path of the catalog file to write.")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		glog.Exitf("got fatal error: %v", err)
	}
}

func run(_ context.Context) error {
	if *output == "" {
		return fmt.Errorf("-output is required")
	}
	b := catalog.NewBuilder()
	for _, t := range []struct {
		path string
		read func(io.Reader) error
	}{
		{*categories, b.ReadCategories},
		{*elements, b.ReadElements},
		{*sequences, b.ReadSequences},
	} {
		if t.path == "" {
			continue
		}
		if err := readTable(t.path, t.read); err != nil {
			return err
		}
	}
	c, err := b.Build()
	if err != nil {
		return err
	}

	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing catalog: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	glog.Infof("wrote %d descriptors to %s", c.Len(), *output)
	return nil
}

func readTable(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}
