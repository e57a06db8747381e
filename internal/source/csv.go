package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVFile reads a comma-separated file from disk.
type CSVFile struct {
	Path string
}

var _ Source = CSVFile{}

func (f CSVFile) Read(ctx context.Context) (Table, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()
	return readCSV(ctx, filepath.Base(f.Path), file)
}

// CSVReader reads comma-separated data from an arbitrary reader, such as
// an HTTP request body.
type CSVReader struct {
	Name   string
	Reader io.Reader
}

var _ Source = CSVReader{}

func (r CSVReader) Read(ctx context.Context) (Table, error) {
	return readCSV(ctx, r.Name, r.Reader)
}

func readCSV(ctx context.Context, name string, r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv %s: %w", name, err)
		}
		if isBlank(rec) {
			continue
		}
		records = append(records, rec)
	}
	return FromRecords(name, records)
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if f != "" {
			return false
		}
	}
	return true
}
