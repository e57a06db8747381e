// Package patterns detects outliers, duplicates, recurring payments and
// spending trends in enriched transactions. Every function treats its input
// as read-only.
package patterns

import (
	"math"
	"sort"
	"strings"

	"extrato/internal/core"
)

// DescriptionKey lowercases desc, collapses whitespace and keeps the first
// prefixLen runes. prefixLen <= 0 keeps the whole description.
func DescriptionKey(desc string, prefixLen int) string {
	key := strings.Join(strings.Fields(strings.ToLower(desc)), " ")
	if prefixLen <= 0 {
		return key
	}
	r := []rune(key)
	if len(r) > prefixLen {
		r = r[:prefixLen]
	}
	return strings.TrimSpace(string(r))
}

// OutlierReport is the result of the IQR test.
type OutlierReport struct {
	Q1         float64   `json:"q1"`
	Q3         float64   `json:"q3"`
	IQR        float64   `json:"iqr"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	Outliers   []float64 `json:"outliers"`
}

// IsOutlier reports whether v lies strictly outside the bounds.
func (r OutlierReport) IsOutlier(v float64) bool {
	return v < r.LowerBound || v > r.UpperBound
}

// Outliers flags values outside [Q1-threshold*IQR, Q3+threshold*IQR], where
// Q1 and Q3 are the sorted elements at floor(n/4) and floor(3n/4). Outliers
// are returned in input order.
func Outliers(values []float64, threshold float64) OutlierReport {
	report := OutlierReport{Outliers: []float64{}}
	n := len(values)
	if n == 0 {
		return report
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	report.Q1 = sorted[n/4]
	report.Q3 = sorted[(3*n)/4]
	report.IQR = report.Q3 - report.Q1
	report.LowerBound = report.Q1 - threshold*report.IQR
	report.UpperBound = report.Q3 + threshold*report.IQR

	for _, v := range values {
		if report.IsOutlier(v) {
			report.Outliers = append(report.Outliers, v)
		}
	}
	return report
}

// OutlierTransactions runs Outliers over the amounts of txs and returns the
// flagged transactions alongside the report.
func OutlierTransactions(txs []core.Transaction, threshold float64) ([]core.Transaction, OutlierReport) {
	values := make([]float64, len(txs))
	for i, t := range txs {
		values[i] = t.Amount
	}
	report := Outliers(values, threshold)

	flagged := []core.Transaction{}
	for _, t := range txs {
		if report.IsOutlier(t.Amount) {
			flagged = append(flagged, t)
		}
	}
	return flagged, report
}

// RankedExpense is an expense with its share of total absolute expenses.
type RankedExpense struct {
	core.Transaction
	Percentage float64 `json:"percentage"`
}

// TopExpenses returns the n largest expenses by magnitude. Ties keep date
// order. n <= 0 returns every expense.
func TopExpenses(txs []core.Transaction, n int) []RankedExpense {
	var expenses []core.Transaction
	var total float64
	for _, t := range txs {
		if t.IsExpense() {
			expenses = append(expenses, t)
			total += math.Abs(t.Amount)
		}
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		ai, aj := math.Abs(expenses[i].Amount), math.Abs(expenses[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return expenses[i].Date < expenses[j].Date
	})
	if n > 0 && len(expenses) > n {
		expenses = expenses[:n]
	}

	out := make([]RankedExpense, len(expenses))
	for i, t := range expenses {
		pct := 0.0
		if total > 0 {
			pct = math.Abs(t.Amount) / total * 100
		}
		out[i] = RankedExpense{Transaction: t, Percentage: pct}
	}
	return out
}

// MerchantSpend is the expense activity of one normalized description.
type MerchantSpend struct {
	Description string  `json:"description"`
	Count       int     `json:"count"`
	Total       float64 `json:"total"`
}

// MerchantRanking orders merchants by spend and by frequency.
type MerchantRanking struct {
	ByAmount    []MerchantSpend `json:"by_amount"`
	ByFrequency []MerchantSpend `json:"by_frequency"`
}

// Merchants ranks expense descriptions. Total is the spent magnitude.
// limit <= 0 keeps every merchant.
func Merchants(txs []core.Transaction, limit int) MerchantRanking {
	index := make(map[string]int)
	var all []MerchantSpend
	for _, t := range txs {
		if !t.IsExpense() {
			continue
		}
		key := DescriptionKey(t.Description, 0)
		i, ok := index[key]
		if !ok {
			i = len(all)
			index[key] = i
			all = append(all, MerchantSpend{Description: strings.TrimSpace(t.Description)})
		}
		all[i].Count++
		all[i].Total += math.Abs(t.Amount)
	}

	byAmount := append([]MerchantSpend(nil), all...)
	sort.SliceStable(byAmount, func(i, j int) bool {
		return byAmount[i].Total > byAmount[j].Total
	})
	byFreq := append([]MerchantSpend(nil), all...)
	sort.SliceStable(byFreq, func(i, j int) bool {
		if byFreq[i].Count != byFreq[j].Count {
			return byFreq[i].Count > byFreq[j].Count
		}
		return byFreq[i].Total > byFreq[j].Total
	})

	if limit > 0 {
		if len(byAmount) > limit {
			byAmount = byAmount[:limit]
		}
		if len(byFreq) > limit {
			byFreq = byFreq[:limit]
		}
	}
	if byAmount == nil {
		byAmount = []MerchantSpend{}
		byFreq = []MerchantSpend{}
	}
	return MerchantRanking{ByAmount: byAmount, ByFrequency: byFreq}
}
