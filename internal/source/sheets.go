package source

import (
	"context"
	"fmt"

	"extrato/internal/sheets"
)

// Sheets reads a spreadsheet range whose first row is the header.
type Sheets struct {
	Name   string
	Range  string
	Reader sheets.RangeReader
}

var _ Source = Sheets{}

func (s Sheets) Read(ctx context.Context) (Table, error) {
	rows, err := s.Reader.ReadRange(ctx, s.Range)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet: %w", err)
	}
	name := s.Name
	if name == "" {
		name = s.Range
	}
	return FromRecords(name, rows)
}
