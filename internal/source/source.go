// Package source reads tabular transaction exports from CSV files, uploads,
// Google Sheets or memory.
package source

import (
	"context"
	"errors"
)

var ErrEmptyTable = errors.New("table has no header row")

// Table is a header row plus data rows. Rows may be shorter or longer than
// the header.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Source produces a Table.
type Source interface {
	Read(ctx context.Context) (Table, error)
}

// Memory serves a fixed table; Read returns a copy of the row slice.
type Memory struct {
	Table Table
}

var _ Source = Memory{}

func (m Memory) Read(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	if len(m.Table.Header) == 0 {
		return Table{}, ErrEmptyTable
	}
	t := m.Table
	t.Header = append([]string(nil), t.Header...)
	t.Rows = append([][]string(nil), t.Rows...)
	return t, nil
}

// FromRecords splits records into header and rows.
func FromRecords(name string, records [][]string) (Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return Table{}, ErrEmptyTable
	}
	return Table{Name: name, Header: records[0], Rows: records[1:]}, nil
}
