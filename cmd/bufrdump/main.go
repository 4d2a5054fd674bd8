// Command bufrdump decodes a file of BUFR messages and prints their content.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr/bufr"
	"github.com/sdifrance/gobufr/bufrio"
	"github.com/sdifrance/gobufr/catalog"
	"github.com/sdifrance/gobufr/store"
)

var (
	input      = flag.String("input", "", "Path to the input BUFR file.")
	tables     = flag.String("tables", "", "Path to a compiled table catalog. The embedded tables are used when empty.")
	sqlitePath = flag.String("sqlite", "", "If set, decoded messages are also written to this SQLite database.")
	maxSubsets = flag.Int("max_subsets", 10, "Maximum number of subsets printed per message; 0 prints all.")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		glog.Exitf("got fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	if *input == "" {
		return fmt.Errorf("-input is required")
	}
	c, err := loadCatalog(*tables)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		return err
	}
	file, err := bufrio.ReadFile(bytes.NewReader(data), c)
	if err != nil {
		return fmt.Errorf("error parsing bufr file contents: %w", err)
	}
	glog.Infof("decoded %d messages from %s", len(file.Messages()), *input)

	for i, msg := range file.Messages() {
		dump(os.Stdout, i, msg, *maxSubsets)
	}

	if *sqlitePath == "" {
		return nil
	}
	db, err := store.Open(*sqlitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	for i, msg := range file.Messages() {
		id, err := db.SaveMessage(ctx, *input, msg)
		if err != nil {
			return fmt.Errorf("error saving message %d: %w", i, err)
		}
		glog.V(1).Infof("message[%d] stored with id %d", i, id)
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

func dump(w io.Writer, index int, msg *bufr.Message, limit int) {
	fmt.Fprintf(w, "message[%d]: edition %d, category %d (%s), %s, %d subsets, compressed=%v observed=%v\n",
		index, msg.Edition, msg.Category, msg.CategoryName, msg.Time.Format("2006-01-02 15:04:05"),
		msg.Subsets, msg.Compressed, msg.Observed)
	subsets := msg.Subsets
	if limit > 0 && subsets > limit {
		subsets = limit
	}
	for s := 0; s < subsets; s++ {
		fmt.Fprintf(w, "  subset %d\n", s)
		for i, desc := range msg.Descriptors {
			v := msg.Values[i][s]
			if math.IsNaN(v) {
				fmt.Fprintf(w, "    %s %-40s missing\n", desc.Code(), desc.Name())
				continue
			}
			fmt.Fprintf(w, "    %s %-40s %g %s\n", desc.Code(), desc.Name(), v, desc.Units())
		}
	}
	if subsets < msg.Subsets {
		fmt.Fprintf(w, "  ... %d more subsets\n", msg.Subsets-subsets)
	}
}
