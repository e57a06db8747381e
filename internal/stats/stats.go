// Package stats computes descriptive statistics and month/category
// aggregates over enriched transactions.
package stats

import (
	"math"
	"sort"
	"strings"

	"extrato/internal/core"
)

// Summary holds descriptive statistics for a sequence of amounts.
type Summary struct {
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
}

// Basic returns the statistics of values, or nil when values is empty.
// Variance is the population variance.
func Basic(values []float64) *Summary {
	n := len(values)
	if n == 0 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var total float64
	for _, v := range values {
		total += v
	}
	mean := total / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance := sq / float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return &Summary{
		Count:    n,
		Total:    total,
		Mean:     mean,
		Median:   median,
		Min:      sorted[0],
		Max:      sorted[n-1],
		Variance: variance,
		StdDev:   math.Sqrt(variance),
	}
}

// Amounts extracts the signed amounts of txs.
func Amounts(txs []core.Transaction) []float64 {
	out := make([]float64, len(txs))
	for i, t := range txs {
		out[i] = t.Amount
	}
	return out
}

// MonthAggregate summarizes the transactions of one month key.
type MonthAggregate struct {
	Count      int                `json:"count"`
	Stats      *Summary           `json:"stats"`
	Categories map[string]float64 `json:"categories"`
	Income     float64            `json:"income"`
	Expenses   float64            `json:"expenses"`
}

// ByMonth groups txs by MonthKey. Categories holds the signed sum per
// category; Expenses is reported as a positive magnitude.
func ByMonth(txs []core.Transaction) map[string]MonthAggregate {
	groups := make(map[string][]core.Transaction)
	for _, t := range txs {
		key := t.MonthKey
		if key == "" {
			key = core.UnknownMonth
		}
		groups[key] = append(groups[key], t)
	}

	out := make(map[string]MonthAggregate, len(groups))
	for key, group := range groups {
		agg := MonthAggregate{
			Count:      len(group),
			Stats:      Basic(Amounts(group)),
			Categories: make(map[string]float64),
		}
		for _, t := range group {
			agg.Categories[categoryOf(t)] += t.Amount
			if t.IsExpense() {
				agg.Expenses += -t.Amount
			} else {
				agg.Income += t.Amount
			}
		}
		out[key] = agg
	}
	return out
}

// MerchantCount is how many times a description occurs within a category.
type MerchantCount struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// CategoryAggregate summarizes the transactions of one category.
type CategoryAggregate struct {
	Count      int             `json:"count"`
	Stats      *Summary        `json:"stats"`
	Percentage float64         `json:"percentage"`
	Merchants  []MerchantCount `json:"merchants"`
}

// ByCategory groups txs by category. Percentage is the bucket's share of the
// absolute amount over all txs. Merchants lists the most frequent
// descriptions, at most merchantLimit of them (all when merchantLimit <= 0).
func ByCategory(txs []core.Transaction, merchantLimit int) map[string]CategoryAggregate {
	groups := make(map[string][]core.Transaction)
	var grand float64
	for _, t := range txs {
		c := categoryOf(t)
		groups[c] = append(groups[c], t)
		grand += math.Abs(t.Amount)
	}

	out := make(map[string]CategoryAggregate, len(groups))
	for name, group := range groups {
		var abs float64
		freq := make(map[string]int)
		for _, t := range group {
			abs += math.Abs(t.Amount)
			freq[strings.TrimSpace(t.Description)]++
		}
		pct := 0.0
		if grand > 0 {
			pct = abs / grand * 100
		}
		out[name] = CategoryAggregate{
			Count:      len(group),
			Stats:      Basic(Amounts(group)),
			Percentage: pct,
			Merchants:  rankCounts(freq, merchantLimit),
		}
	}
	return out
}

func rankCounts(freq map[string]int, limit int) []MerchantCount {
	out := make([]MerchantCount, 0, len(freq))
	for d, c := range freq {
		out = append(out, MerchantCount{Description: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Description < out[j].Description
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MonthlyTotals returns the signed total per month in chronological order.
// Transactions without a known month are left out.
func MonthlyTotals(txs []core.Transaction) []core.MonthlyTotal {
	totals := make(map[string]float64)
	for _, t := range txs {
		if t.MonthKey == "" || t.MonthKey == core.UnknownMonth {
			continue
		}
		totals[t.MonthKey] += t.Amount
	}

	out := make([]core.MonthlyTotal, 0, len(totals))
	for m, total := range totals {
		out = append(out, core.MonthlyTotal{Month: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		return sortableMonth(out[i].Month) < sortableMonth(out[j].Month)
	})
	return out
}

// MonthlySpending is like MonthlyTotals but sums only expenses, as positive
// magnitudes. Months with income only report zero.
func MonthlySpending(txs []core.Transaction) []core.MonthlyTotal {
	spend := make([]core.Transaction, len(txs))
	for i, t := range txs {
		spend[i] = core.Transaction{MonthKey: t.MonthKey}
		if t.IsExpense() {
			spend[i].Amount = -t.Amount
		}
	}
	return MonthlyTotals(spend)
}

// SortedMonths returns the keys of months in chronological order with
// "Unknown" last.
func SortedMonths(months map[string]MonthAggregate) []string {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return sortableMonth(keys[i]) < sortableMonth(keys[j])
	})
	return keys
}

// sortableMonth turns "MM/YYYY" into "YYYY/MM". Anything else sorts after.
func sortableMonth(key string) string {
	if len(key) == 7 && key[2] == '/' {
		return key[3:] + "/" + key[:2]
	}
	return "~" + key
}

func categoryOf(t core.Transaction) string {
	if t.Category == "" {
		return core.DefaultCategory
	}
	return t.Category
}
