package query

import (
	"errors"
	"net/url"
	"testing"

	"extrato/internal/core"
)

func fixtures() []core.Transaction {
	return []core.Transaction{
		{Date: "2025-01-05", Description: "IFOOD *Restaurante", Amount: -60, Category: "Food"},
		{Date: "2025-01-20", Description: "Reembolso iFood", Amount: 60, Category: "Income"},
		{Date: "2025-02-01", Description: "Uber trip", Amount: -15, Category: "Transport"},
		{Date: "2025-03-10", Description: "Aluguel", Amount: -1500, Category: "Housing"},
	}
}

func descriptions(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.Description
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"zero criteria keeps everything", Criteria{}, []string{"IFOOD *Restaurante", "Reembolso iFood", "Uber trip", "Aluguel"}},
		{"exact category", Criteria{Category: "Food"}, []string{"IFOOD *Restaurante"}},
		{"category is case sensitive", Criteria{Category: "food"}, []string{}},
		{"min amount uses magnitude", Criteria{MinAmount: Float(50)}, []string{"IFOOD *Restaurante", "Reembolso iFood", "Aluguel"}},
		{"amount range", Criteria{MinAmount: Float(10), MaxAmount: Float(60)}, []string{"IFOOD *Restaurante", "Reembolso iFood", "Uber trip"}},
		{"inclusive dates", Criteria{StartDate: "2025-01-20", EndDate: "2025-02-01"}, []string{"Reembolso iFood", "Uber trip"}},
		{"description substring ignores case", Criteria{Description: "ifood"}, []string{"IFOOD *Restaurante", "Reembolso iFood"}},
		{"conjunctive", Criteria{Description: "ifood", MinAmount: Float(50), Category: "Income"}, []string{"Reembolso iFood"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := descriptions(Filter(fixtures(), tt.c))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCriteriaIsZero(t *testing.T) {
	if !(Criteria{}).IsZero() {
		t.Fatalf("empty criteria should be zero")
	}
	if (Criteria{MaxAmount: Float(0)}).IsZero() {
		t.Fatalf("a zero bound is still a condition")
	}
}

func TestParseCriteria(t *testing.T) {
	v := url.Values{}
	v.Set("category", " Food ")
	v.Set("min_amount", "1.234,56")
	v.Set("max_amount", "-2000")
	v.Set("start_date", "2025-01-01")
	v.Set("q", "ifood")

	c, err := ParseCriteria(v)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Category != "Food" || c.Description != "ifood" || c.StartDate != "2025-01-01" || c.EndDate != "" {
		t.Fatalf("unexpected criteria: %+v", c)
	}
	if c.MinAmount == nil || *c.MinAmount != 1234.56 {
		t.Fatalf("unexpected min amount: %v", c.MinAmount)
	}
	if c.MaxAmount == nil || *c.MaxAmount != 2000 {
		t.Fatalf("unexpected max amount: %v", c.MaxAmount)
	}

	back, err := ParseCriteria(c.Values())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if *back.MinAmount != *c.MinAmount || back.Category != c.Category {
		t.Fatalf("values round trip mismatch: %+v", back)
	}
}

func TestParseCriteria_Invalid(t *testing.T) {
	cases := []url.Values{
		{"min_amount": {"abc"}},
		{"min_amount": {"100"}, "max_amount": {"10"}},
		{"start_date": {"01/02/2025"}},
		{"start_date": {"2025-03-01"}, "end_date": {"2025-01-01"}},
	}
	for i, v := range cases {
		if _, err := ParseCriteria(v); !errors.Is(err, ErrInvalidCriteria) {
			t.Errorf("case %d: expected ErrInvalidCriteria, got %v", i, err)
		}
	}
}
