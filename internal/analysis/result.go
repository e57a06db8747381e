package analysis

import (
	"encoding/json"
	"sort"
	"time"

	"extrato/internal/core"
	"extrato/internal/patterns"
	"extrato/internal/stats"
)

// Result is the immutable output of one pipeline run.
type Result struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	SourceName  string    `json:"source_name"`
	RowsRead    int       `json:"rows_read"`
	RowsDropped int       `json:"rows_dropped"`
	Options     Options   `json:"options"`

	General             *stats.Summary                     `json:"general_stats"`
	Months              map[string]stats.MonthAggregate    `json:"months"`
	Categories          map[string]stats.CategoryAggregate `json:"categories"`
	MonthlyTotals       []core.MonthlyTotal                `json:"monthly_totals"`
	Outliers            patterns.OutlierReport             `json:"outliers"`
	OutlierTransactions []core.Transaction                 `json:"outlier_transactions"`
	TopExpenses         []patterns.RankedExpense           `json:"top_expenses"`
	Duplicates          []patterns.DuplicateGroup          `json:"duplicates"`
	Recurring           []patterns.RecurringPattern        `json:"recurring"`
	Trend               patterns.TrendResult               `json:"trend"`
	Merchants           patterns.MerchantRanking           `json:"merchants"`
	Transactions        []core.Transaction                 `json:"transactions"`
}

// MonthNames returns the month keys in chronological order.
func (r *Result) MonthNames() []string {
	return stats.SortedMonths(r.Months)
}

// CategoryNames returns category names by descending share, then name.
func (r *Result) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for name := range r.Categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.Categories[names[i]].Percentage, r.Categories[names[j]].Percentage
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// Totals returns the summed income and the expense magnitude over all
// transactions.
func (r *Result) Totals() (income, expenses float64) {
	for _, m := range r.Months {
		income += m.Income
		expenses += m.Expenses
	}
	return income, expenses
}

// ToMap converts the result into nested maps, slices and primitives using
// the JSON field names.
func (r *Result) ToMap() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
