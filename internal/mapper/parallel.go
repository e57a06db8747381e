package mapper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"extrato/internal/core"
	"extrato/internal/log"
)

// firstDataLine is the 1-based line of the first data row (the header is line 1).
const firstDataLine = 2

// RowFailure records a dropped row.
type RowFailure struct {
	Line int
	Err  error
}

// Batch is the outcome of parsing a whole table.
type Batch struct {
	Transactions []core.Transaction
	Failures     []RowFailure
	RowsRead     int
}

// Dropped returns how many rows did not become transactions.
func (b Batch) Dropped() int {
	return len(b.Failures)
}

// ParseRows parses rows concurrently with at most workers goroutines and
// merges the results back in input order.
func ParseRows(ctx context.Context, rows [][]string, m Mapping, formats []string, workers int) (Batch, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]RowResult, len(rows))

	chunk := (len(rows) + workers - 1) / workers
	if chunk < 64 {
		chunk = 64
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(rows); lo += chunk {
		hi := min(lo+chunk, len(rows))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = ParseRow(rows[i], m, formats)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, fmt.Errorf("parse rows: %w", err)
	}

	batch := Batch{
		Transactions: make([]core.Transaction, 0, len(rows)),
		RowsRead:     len(rows),
	}
	for i, r := range results {
		if !r.OK() {
			batch.Failures = append(batch.Failures, RowFailure{Line: i + firstDataLine, Err: r.Err})
			continue
		}
		batch.Transactions = append(batch.Transactions, r.Transaction)
	}
	return batch, nil
}

// Options controls Load.
type Options struct {
	DateFormats []string
	Workers     int
}

// Load maps the header and parses every row. A header without the required
// columns fails before any row is read; individual bad rows are only logged.
func Load(ctx context.Context, header []string, rows [][]string, opts Options, logger *log.Logger) (Batch, error) {
	logger = logger.WithComponent(log.ComponentMapper)

	m, err := BuildFieldMapping(header)
	if err != nil {
		logger.ErrorContext(ctx, "Header mapping failed", log.FieldError, err)
		return Batch{}, err
	}

	formats := opts.DateFormats
	if len(formats) == 0 {
		formats = core.DefaultDateFormats
	}

	batch, err := ParseRows(ctx, rows, m, formats, opts.Workers)
	if err != nil {
		return Batch{}, err
	}

	for _, f := range batch.Failures {
		logger.DebugContext(ctx, "Dropped row", log.FieldLine, f.Line, log.FieldError, f.Err)
	}
	fields := log.NewFields().
		WithOperation(log.OpParse).
		WithRows(batch.RowsRead, len(batch.Transactions), batch.Dropped())
	logger.InfoContext(ctx, "Rows parsed", fields.ToSlice()...)

	return batch, nil
}
