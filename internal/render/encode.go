package render

import (
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"extrato/internal/analysis"
)

// JSON writes the result as indented JSON.
func JSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Gob writes the result in Go's native binary encoding. ReadGob reads it
// back.
func Gob(w io.Writer, res *analysis.Result) error {
	return gob.NewEncoder(w).Encode(res)
}

// ReadGob decodes a result written by Gob.
func ReadGob(r io.Reader) (*analysis.Result, error) {
	var res analysis.Result
	if err := gob.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode gob report: %w", err)
	}
	return &res, nil
}

// CSVHeader is the header row written by CSV.
var CSVHeader = []string{"date", "description", "amount", "category", "month", "year", "date_raw"}

// CSV writes the enriched transactions, one per row.
func CSV(w io.Writer, res *analysis.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range res.Transactions {
		rec := []string{
			t.Date,
			t.Description,
			strconv.FormatFloat(t.Amount, 'f', 2, 64),
			t.Category,
			t.MonthKey,
			t.Year,
			t.DateRaw,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
