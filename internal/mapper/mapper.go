package mapper

import (
	"errors"
	"fmt"
	"strings"

	"extrato/internal/core"
)

// FieldError is the failure of a single field of a row.
type FieldError struct {
	Field Field
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RowResult is either a parsed transaction or the joined field errors that
// caused the row to be dropped.
type RowResult struct {
	Transaction core.Transaction
	Err         error
}

// OK reports whether the row produced a transaction.
func (r RowResult) OK() bool {
	return r.Err == nil
}

// ParseRow extracts and validates date, description and amount. Every field
// is checked so the returned error lists all problems of the row.
func ParseRow(row []string, m Mapping, formats []string) RowResult {
	var errs []error

	dateRaw := cell(row, m.Index(FieldDate))
	date, ok := core.ParseDate(dateRaw, formats)
	if !ok {
		errs = append(errs, &FieldError{Field: FieldDate, Value: dateRaw, Err: core.ErrInvalidDate})
	}

	desc := strings.TrimSpace(cell(row, m.Index(FieldDescription)))
	if desc == "" {
		errs = append(errs, &FieldError{Field: FieldDescription, Value: desc, Err: core.ErrEmptyDescription})
	}

	amountRaw := cell(row, m.Index(FieldAmount))
	amount, err := core.ParseAmount(amountRaw)
	if err != nil {
		errs = append(errs, &FieldError{Field: FieldAmount, Value: amountRaw, Err: err})
	}

	if len(errs) > 0 {
		return RowResult{Err: errors.Join(errs...)}
	}

	tx := core.Transaction{
		Date:        date,
		DateRaw:     dateRaw,
		Description: desc,
		Amount:      amount,
		Category:    core.DefaultCategory,
	}
	tx.Extra = extras(row, m)
	return RowResult{Transaction: tx}
}

func extras(row []string, m Mapping) map[string]string {
	var out map[string]string
	put := func(k, v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	for _, f := range []Field{FieldCategory, FieldType} {
		if i := m.Index(f); i >= 0 {
			put(string(f), cell(row, i))
		}
	}
	for _, c := range m.Others {
		put(c.Name, cell(row, c.Index))
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
