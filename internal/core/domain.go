package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultCategory is assigned when no rule matches a description.
	DefaultCategory = "Others"
	// UnknownMonth is the month key of transactions whose date could not be parsed.
	UnknownMonth = "Unknown"
)

type (
	// Transaction is a single normalized row of the statement.
	Transaction struct {
		Date        string            `json:"date"`
		DateRaw     string            `json:"date_raw"`
		Description string            `json:"description"`
		Amount      float64           `json:"amount"`
		Category    string            `json:"category"`
		MonthKey    string            `json:"month_key"`
		Year        string            `json:"year"`
		Extra       map[string]string `json:"extra,omitempty"`
	}

	// CategoryRule assigns Name to any description containing one of Keywords.
	CategoryRule struct {
		Name     string   `json:"name" yaml:"name"`
		Keywords []string `json:"keywords" yaml:"keywords"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingColumn    = errors.New("missing required column")
	ErrNoData           = errors.New("no valid transactions")
	ErrInvalidNumeric   = errors.New("invalid numeric value")
)

// IsExpense reports whether the transaction is money going out.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

// MissingColumnError is returned when a header set lacks a required field.
type MissingColumnError struct {
	Headers []string
	Missing []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing %s; got headers=%v",
		ErrMissingColumn, strings.Join(e.Missing, ","), e.Headers)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// EmptyInputError is returned when nothing survived row parsing.
type EmptyInputError struct {
	RowsRead    int
	RowsDropped int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: %d rows read, %d dropped", ErrNoData, e.RowsRead, e.RowsDropped)
}

func (e *EmptyInputError) Unwrap() error {
	return ErrNoData
}

// Validate checks the record-level invariants of a parsed transaction.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Date) == "" {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !IsFinite(t.Amount) {
		return fmt.Errorf("%w: amount %v", ErrInvalidNumeric, t.Amount)
	}
	return nil
}

// Validate checks that a rule has a name and at least one usable keyword.
func (r CategoryRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name cannot be empty")
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("rule %q has no keywords", r.Name)
	}
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("rule %q has an empty keyword", r.Name)
		}
	}
	return nil
}
