package sheets

import "context"

// Ports for spreadsheet adapters.
type (
	// RangeReader returns the cell values of an A1 range, one slice per row.
	// Trailing empty cells may be omitted, so rows can be ragged.
	RangeReader interface {
		ReadRange(ctx context.Context, a1Range string) ([][]string, error)
	}
)
