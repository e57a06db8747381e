// Package analysis runs the enrichment, aggregation and pattern detection
// stages over a set of parsed transactions.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"extrato/internal/cache"
	"extrato/internal/classifier"
	"extrato/internal/core"
	"extrato/internal/log"
	"extrato/internal/mapper"
	"extrato/internal/patterns"
	"extrato/internal/stats"
)

var ErrInvalidOptions = errors.New("invalid analysis options")

// Meta describes where the transactions came from.
type Meta struct {
	SourceName  string
	RowsRead    int
	RowsDropped int
}

// Pipeline is safe for concurrent use; each Run works on its own copy of
// the input.
type Pipeline struct {
	opts       Options
	classifier *classifier.Classifier
	cadences   *patterns.CadenceRegistry
	logger     *log.Logger
	now        func() time.Time
	newID      func() string
}

// New validates rules and options and builds a pipeline.
func New(rules classifier.Rules, opts Options, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Discard()
	}
	rules = rules.Normalize()
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid category rules: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(opts.DateFormats) == 0 {
		opts.DateFormats = append([]string(nil), core.DefaultDateFormats...)
	}
	return &Pipeline{
		opts:       opts,
		classifier: classifier.New(rules, opts.ClassifierCacheSize),
		cadences:   patterns.NewCadenceRegistry(),
		logger:     logger.WithComponent(log.ComponentPipeline),
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// Options returns the options the pipeline was built with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Rules returns the category rules in evaluation order.
func (p *Pipeline) Rules() classifier.Rules {
	return p.classifier.Rules()
}

// Cadences returns the pipeline's recurring cadence checkers. Checkers
// registered on it apply to later runs of this pipeline only.
func (p *Pipeline) Cadences() *patterns.CadenceRegistry {
	return p.cadences
}

// ClassifierStats exposes the classification memo counters.
func (p *Pipeline) ClassifierStats() cache.Stats {
	return p.classifier.Stats()
}

// AnalyzeTable parses a header and rows and runs the pipeline over the
// resulting transactions.
func (p *Pipeline) AnalyzeTable(ctx context.Context, name string, header []string, rows [][]string) (*Result, error) {
	batch, err := mapper.Load(ctx, header, rows, mapper.Options{
		DateFormats: p.opts.DateFormats,
		Workers:     p.opts.ParseWorkers,
	}, p.logger)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, batch.Transactions, Meta{
		SourceName:  name,
		RowsRead:    batch.RowsRead,
		RowsDropped: batch.Dropped(),
	})
}

// Run enriches txs and computes every aggregate. txs is not modified.
func (p *Pipeline) Run(ctx context.Context, txs []core.Transaction, meta Meta) (*Result, error) {
	if len(txs) == 0 {
		err := &core.EmptyInputError{RowsRead: meta.RowsRead, RowsDropped: meta.RowsDropped}
		p.logger.WarnContext(ctx, "Nothing to analyze",
			log.FieldSource, meta.SourceName,
			log.FieldRowsRead, meta.RowsRead,
			log.FieldRowsDropped, meta.RowsDropped)
		return nil, err
	}
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d (%s %q): %w", i, t.DateRaw, t.Description, err)
		}
	}
	if meta.RowsRead == 0 {
		meta.RowsRead = len(txs) + meta.RowsDropped
	}

	start := p.now()
	enriched := p.enrich(txs)
	o := p.opts

	flagged, outliers := patterns.OutlierTransactions(enriched, o.OutlierThreshold)
	res := &Result{
		RunID:               p.newID(),
		GeneratedAt:         start.UTC(),
		SourceName:          meta.SourceName,
		RowsRead:            meta.RowsRead,
		RowsDropped:         meta.RowsDropped,
		Options:             o,
		General:             stats.Basic(stats.Amounts(enriched)),
		Outliers:            outliers,
		OutlierTransactions: flagged,
		TopExpenses:         patterns.TopExpenses(enriched, o.TopN),
		Duplicates:          patterns.Duplicates(enriched, o.DescriptionPrefixLen),
		Recurring:           patterns.Recurring(enriched, o.MinOccurrences, o.DescriptionPrefixLen, p.cadences),
		Trend:               patterns.Trend(stats.MonthlySpending(enriched), o.TrendWindowMonths),
		Merchants:           patterns.Merchants(enriched, o.MerchantLimit),
		Months:              stats.ByMonth(enriched),
		Categories:          stats.ByCategory(enriched, o.MerchantLimit),
		MonthlyTotals:       stats.MonthlyTotals(enriched),
		Transactions:        enriched,
	}

	fields := log.NewFields().
		WithOperation(log.OpAnalyze).
		WithRun(res.RunID, res.SourceName).
		WithRows(res.RowsRead, len(enriched), res.RowsDropped)
	fields["categories"] = len(res.Categories)
	fields["duplicates"] = len(res.Duplicates)
	fields["recurring"] = len(res.Recurring)
	fields["trend"] = string(res.Trend.Direction)
	fields[log.FieldDuration] = p.now().Sub(start).Milliseconds()
	p.logger.InfoContext(ctx, "Analysis complete", fields.ToSlice()...)

	return res, nil
}

// enrich returns a classified copy of txs with month and year attached.
func (p *Pipeline) enrich(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		t.Category = p.classifier.Classify(t.Description)
		t.MonthKey = core.MonthKey(t.Date)
		t.Year = core.YearOf(t.Date)
		t.Extra = maps.Clone(t.Extra)
		out[i] = t
	}
	return out
}
