// Package query filters enriched transactions.
package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"extrato/internal/core"
)

// Query parameter names understood by ParseCriteria.
const (
	ParamCategory    = "category"
	ParamMinAmount   = "min_amount"
	ParamMaxAmount   = "max_amount"
	ParamStartDate   = "start_date"
	ParamEndDate     = "end_date"
	ParamDescription = "q"
)

var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Criteria holds optional, conjunctive filter conditions. Zero values (and
// nil bounds) disable a condition.
type Criteria struct {
	Category    string   `json:"category,omitempty"`
	MinAmount   *float64 `json:"min_amount,omitempty"`
	MaxAmount   *float64 `json:"max_amount,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Description string   `json:"description,omitempty"`
}

// IsZero reports whether no condition is set.
func (c Criteria) IsZero() bool {
	return c.Category == "" && c.MinAmount == nil && c.MaxAmount == nil &&
		c.StartDate == "" && c.EndDate == "" && c.Description == ""
}

// Match reports whether t satisfies every set condition. Amount bounds apply
// to the absolute amount; date bounds are inclusive and compared as ISO
// strings.
func (c Criteria) Match(t core.Transaction) bool {
	if c.Category != "" && t.Category != c.Category {
		return false
	}
	abs := math.Abs(t.Amount)
	if c.MinAmount != nil && abs < *c.MinAmount {
		return false
	}
	if c.MaxAmount != nil && abs > *c.MaxAmount {
		return false
	}
	if c.StartDate != "" && t.Date < c.StartDate {
		return false
	}
	if c.EndDate != "" && t.Date > c.EndDate {
		return false
	}
	if c.Description != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(c.Description)) {
		return false
	}
	return true
}

// Filter returns the transactions matching c, in input order.
func Filter(txs []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if c.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks that bounds are ordered and dates are ISO formatted.
func (c Criteria) Validate() error {
	var problems []string
	if c.MinAmount != nil && c.MaxAmount != nil && *c.MinAmount > *c.MaxAmount {
		problems = append(problems, "min_amount is greater than max_amount")
	}
	for _, d := range [][2]string{{ParamStartDate, c.StartDate}, {ParamEndDate, c.EndDate}} {
		if d[1] == "" {
			continue
		}
		if iso, ok := core.ParseDate(d[1], []string{"yyyy-MM-dd"}); !ok || iso != d[1] {
			problems = append(problems, fmt.Sprintf("%s must be YYYY-MM-DD", d[0]))
		}
	}
	if c.StartDate != "" && c.EndDate != "" && c.StartDate > c.EndDate {
		problems = append(problems, "start_date is after end_date")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCriteria, strings.Join(problems, "; "))
	}
	return nil
}

// ParseCriteria builds Criteria from query parameters and validates it.
func ParseCriteria(v url.Values) (Criteria, error) {
	c := Criteria{
		Category:    strings.TrimSpace(v.Get(ParamCategory)),
		StartDate:   strings.TrimSpace(v.Get(ParamStartDate)),
		EndDate:     strings.TrimSpace(v.Get(ParamEndDate)),
		Description: strings.TrimSpace(v.Get(ParamDescription)),
	}

	var err error
	if c.MinAmount, err = parseBound(v.Get(ParamMinAmount)); err != nil {
		return Criteria{}, fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, ParamMinAmount, err)
	}
	if c.MaxAmount, err = parseBound(v.Get(ParamMaxAmount)); err != nil {
		return Criteria{}, fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, ParamMaxAmount, err)
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// Values encodes c back into query parameters.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set(ParamCategory, c.Category)
	set(ParamStartDate, c.StartDate)
	set(ParamEndDate, c.EndDate)
	set(ParamDescription, c.Description)
	if c.MinAmount != nil {
		v.Set(ParamMinAmount, strconv.FormatFloat(*c.MinAmount, 'f', -1, 64))
	}
	if c.MaxAmount != nil {
		v.Set(ParamMaxAmount, strconv.FormatFloat(*c.MaxAmount, 'f', -1, 64))
	}
	return v
}

// parseBound accepts either amount convention; the sign is ignored since
// bounds apply to magnitudes.
func parseBound(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	f, err := core.ParseAmount(s)
	if err != nil {
		return nil, err
	}
	f = math.Abs(f)
	return &f, nil
}

// Float returns a pointer to f, for building Criteria literals.
func Float(f float64) *float64 {
	return &f
}
