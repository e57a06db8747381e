package patterns

import (
	"math"
	"sort"
	"strings"
	"time"

	"extrato/internal/core"
)

// RecurringPattern describes a description seen across several months.
type RecurringPattern struct {
	Description     string   `json:"description"`
	Key             string   `json:"key"`
	Count           int      `json:"count"`
	Months          []string `json:"months"`
	AverageAmount   float64  `json:"average_amount"`
	MinAmount       float64  `json:"min_amount"`
	MaxAmount       float64  `json:"max_amount"`
	TotalAmount     float64  `json:"total_amount"`
	FirstDate       string   `json:"first_date"`
	LastDate        string   `json:"last_date"`
	AvgIntervalDays float64  `json:"avg_interval_days"`
	Cadence         Cadence  `json:"cadence"`
	NextExpected    string   `json:"next_expected,omitempty"`
}

// Recurring groups txs by description prefix and keeps groups with at
// least minOccurrences transactions spread over at least minOccurrences
// distinct known months. Patterns are ordered by count, then description.
// Cadences are classified with cadences, or the default checkers when nil.
func Recurring(txs []core.Transaction, minOccurrences, prefixLen int, cadences *CadenceRegistry) []RecurringPattern {
	if minOccurrences < 1 {
		minOccurrences = 1
	}
	if cadences == nil {
		cadences = NewCadenceRegistry()
	}

	groups := make(map[string][]core.Transaction)
	var order []string
	for _, t := range txs {
		k := DescriptionKey(t.Description, prefixLen)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	out := []RecurringPattern{}
	for _, k := range order {
		members := groups[k]
		if len(members) < minOccurrences {
			continue
		}
		months := distinctMonths(members)
		if len(months) < minOccurrences {
			continue
		}
		out = append(out, buildPattern(k, members, months, cadences))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func distinctMonths(txs []core.Transaction) []string {
	seen := make(map[string]bool)
	var months []string
	for _, t := range txs {
		if t.MonthKey == "" || t.MonthKey == core.UnknownMonth || seen[t.MonthKey] {
			continue
		}
		seen[t.MonthKey] = true
		months = append(months, t.MonthKey)
	}
	sort.Slice(months, func(i, j int) bool {
		return sortableMonth(months[i]) < sortableMonth(months[j])
	})
	return months
}

func buildPattern(key string, txs []core.Transaction, months []string, cadences *CadenceRegistry) RecurringPattern {
	p := RecurringPattern{
		Description: strings.TrimSpace(txs[0].Description),
		Key:         key,
		Count:       len(txs),
		Months:      months,
		MinAmount:   math.Inf(1),
		MaxAmount:   math.Inf(-1),
	}

	var dates []time.Time
	for _, t := range txs {
		p.TotalAmount += t.Amount
		p.MinAmount = math.Min(p.MinAmount, t.Amount)
		p.MaxAmount = math.Max(p.MaxAmount, t.Amount)
		if p.FirstDate == "" || t.Date < p.FirstDate {
			p.FirstDate = t.Date
		}
		if t.Date > p.LastDate {
			p.LastDate = t.Date
		}
		if d, err := time.Parse(time.DateOnly, t.Date); err == nil {
			dates = append(dates, d)
		}
	}
	p.AverageAmount = p.TotalAmount / float64(len(txs))

	if len(dates) > 1 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		span := dates[len(dates)-1].Sub(dates[0]).Hours() / 24
		p.AvgIntervalDays = span / float64(len(dates)-1)
	}
	applyCadence(&p, cadences)
	return p
}
