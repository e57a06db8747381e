package render

import (
	"extrato/internal/analysis"
	"extrato/internal/core"
)

type categoryRow struct {
	Name       string
	Count      int
	Total      float64
	Percentage float64
}

type monthRow struct {
	Name     string
	Count    int
	Income   float64
	Expenses float64
}

// view orders the map-based parts of a result for display.
type view struct {
	*analysis.Result
	Categories []categoryRow
	Months     []monthRow
}

func newView(res *analysis.Result) view {
	v := view{Result: res}
	for _, name := range res.CategoryNames() {
		c := res.Categories[name]
		row := categoryRow{Name: name, Count: c.Count, Percentage: c.Percentage}
		if c.Stats != nil {
			row.Total = c.Stats.Total
		}
		v.Categories = append(v.Categories, row)
	}
	for _, name := range res.MonthNames() {
		m := res.Months[name]
		v.Months = append(v.Months, monthRow{Name: name, Count: m.Count, Income: m.Income, Expenses: m.Expenses})
	}
	return v
}

func amount(v float64) string {
	return core.FormatAmount(v, false)
}
