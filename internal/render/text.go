package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"extrato/internal/analysis"
)

// Text writes a human readable report.
func Text(w io.Writer, res *analysis.Result) error {
	bw := bufio.NewWriter(w)
	v := newView(res)

	fmt.Fprintf(bw, "Statement analysis: %s\n", res.SourceName)
	fmt.Fprintf(bw, "Run %s, generated %s\n", res.RunID, res.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(bw, "%d rows read, %d dropped, %d transactions\n", res.RowsRead, res.RowsDropped, len(res.Transactions))

	if s := res.General; s != nil {
		section(bw, "Overview")
		tw := table(bw)
		fmt.Fprintf(tw, "Net total\t%s\n", amount(s.Total))
		fmt.Fprintf(tw, "Mean\t%s\n", amount(s.Mean))
		fmt.Fprintf(tw, "Median\t%s\n", amount(s.Median))
		fmt.Fprintf(tw, "Min / Max\t%s / %s\n", amount(s.Min), amount(s.Max))
		fmt.Fprintf(tw, "Std. deviation\t%s\n", amount(s.StdDev))
		income, expenses := res.Totals()
		fmt.Fprintf(tw, "Income\t%s\n", amount(income))
		fmt.Fprintf(tw, "Expenses\t%s\n", amount(expenses))
		tw.Flush()
	}

	section(bw, "Trend")
	fmt.Fprintf(bw, "%s (%+.1f%% over %d months)\n", res.Trend.Direction, res.Trend.ChangePercentage, res.Trend.Months)

	section(bw, "Categories")
	tw := table(bw)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tTOTAL\tSHARE\t")
	for _, c := range v.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f%%\t\n", c.Name, c.Count, amount(c.Total), c.Percentage)
	}
	tw.Flush()

	section(bw, "Months")
	tw = table(bw)
	fmt.Fprintln(tw, "MONTH\tCOUNT\tINCOME\tEXPENSES\t")
	for _, m := range v.Months {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", m.Name, m.Count, amount(m.Income), amount(m.Expenses))
	}
	tw.Flush()

	section(bw, "Top expenses")
	tw = table(bw)
	for i, e := range res.TopExpenses {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\t%.1f%%\t\n", i+1, e.Date, e.Description, amount(e.Amount), e.Percentage)
	}
	tw.Flush()

	section(bw, "Outliers")
	fmt.Fprintf(bw, "Bounds %s to %s (IQR %s)\n", amount(res.Outliers.LowerBound), amount(res.Outliers.UpperBound), amount(res.Outliers.IQR))
	for _, t := range res.OutlierTransactions {
		fmt.Fprintf(bw, "  %s  %s  %s\n", t.Date, t.Description, amount(t.Amount))
	}

	section(bw, "Possible duplicates")
	if len(res.Duplicates) == 0 {
		fmt.Fprintln(bw, "None.")
	}
	for _, g := range res.Duplicates {
		first := g.Transactions[0]
		fmt.Fprintf(bw, "%s  %s  %s  x%d\n", g.MonthKey, first.Description, amount(first.Amount), g.Count)
	}

	section(bw, "Recurring payments")
	if len(res.Recurring) == 0 {
		fmt.Fprintln(bw, "None.")
	}
	tw = table(bw)
	for _, p := range res.Recurring {
		next := "-"
		if p.NextExpected != "" {
			next = "next " + p.NextExpected
		}
		fmt.Fprintf(tw, "%s\t%d times\tavg %s\t%s\t%s\t%s\n",
			p.Description, p.Count, amount(p.AverageAmount), p.Cadence, next, strings.Join(p.Months, " "))
	}
	tw.Flush()

	section(bw, "Merchants by spend")
	for _, m := range res.Merchants.ByAmount {
		fmt.Fprintf(bw, "  %s  %s (%d)\n", m.Description, amount(m.Total), m.Count)
	}

	return bw.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", title)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
