// Package storage writes analysis results to a SQLite file. The file is an
// export target only; nothing in extrato reads it back.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"extrato/internal/analysis"
	"extrato/internal/core"
	"extrato/internal/log"
)

// runTables lists every table keyed by run_id, children first.
var runTables = []string{
	"recurring_patterns",
	"duplicate_groups",
	"months",
	"categories",
	"transactions",
	"runs",
}

// Exporter writes results into one SQLite database.
type Exporter struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open creates the database file if needed and migrates it.
func Open(path string, logger *log.Logger) (*Exporter, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	if err := RunMigrations(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Exporter{
		db:     db,
		path:   path,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

// Close releases the database handle.
func (e *Exporter) Close() error {
	return e.db.Close()
}

// DB exposes the underlying handle for read-only inspection.
func (e *Exporter) DB() *sql.DB {
	return e.db
}

// Export writes res in a single transaction. Exporting the same run twice
// replaces the earlier rows.
func (e *Exporter) Export(ctx context.Context, res *analysis.Result) error {
	start := time.Now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	for _, table := range runTables {
		col := "run_id"
		if table == "runs" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+col+" = ?", res.RunID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	steps := []func(context.Context, *sql.Tx, *analysis.Result) error{
		insertRun,
		insertTransactions,
		insertCategories,
		insertMonths,
		insertDuplicates,
		insertRecurring,
	}
	for _, step := range steps {
		if err := step(ctx, tx, res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}

	e.logger.InfoContext(ctx, "Exported analysis to SQLite",
		log.FieldRunID, res.RunID,
		log.FieldOutput, e.path,
		"transactions", len(res.Transactions),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ExportSQLite opens path, writes res and closes the database again.
func ExportSQLite(ctx context.Context, path string, res *analysis.Result, logger *log.Logger) error {
	e, err := Open(path, logger)
	if err != nil {
		return err
	}
	defer e.Close()
	return e.Export(ctx, res)
}

func insertRun(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	var total float64
	if res.General != nil {
		total = res.General.Total
	}
	income, expenses := res.Totals()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, source_name, generated_at, rows_read, rows_dropped,
			total_cents, income_cents, expense_cents, trend_direction, trend_change,
			outlier_lower, outlier_upper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.SourceName, res.GeneratedAt.UTC().Format(time.RFC3339),
		res.RowsRead, res.RowsDropped,
		core.Cents(total), core.Cents(income), core.Cents(expenses),
		string(res.Trend.Direction), res.Trend.ChangePercentage,
		res.Outliers.LowerBound, res.Outliers.UpperBound)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (run_id, position, date, date_raw, description,
			amount_cents, category, month_key, year, is_outlier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare transactions: %w", err)
	}
	defer stmt.Close()

	for i, t := range res.Transactions {
		outlier := 0
		if res.Outliers.IsOutlier(t.Amount) {
			outlier = 1
		}
		if _, err := stmt.ExecContext(ctx, res.RunID, i, t.Date, t.DateRaw, t.Description,
			core.Cents(t.Amount), t.Category, t.MonthKey, t.Year, outlier); err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	return nil
}

func insertCategories(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	for _, name := range res.CategoryNames() {
		c := res.Categories[name]
		var total float64
		if c.Stats != nil {
			total = c.Stats.Total
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (run_id, name, count, total_cents, percentage) VALUES (?, ?, ?, ?, ?)`,
			res.RunID, name, c.Count, core.Cents(total), c.Percentage); err != nil {
			return fmt.Errorf("insert category %q: %w", name, err)
		}
	}
	return nil
}

func insertMonths(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	for _, key := range res.MonthNames() {
		m := res.Months[key]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO months (run_id, month_key, count, income_cents, expense_cents) VALUES (?, ?, ?, ?, ?)`,
			res.RunID, key, m.Count, core.Cents(m.Income), core.Cents(m.Expenses)); err != nil {
			return fmt.Errorf("insert month %q: %w", key, err)
		}
	}
	return nil
}

func insertDuplicates(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	for _, g := range res.Duplicates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO duplicate_groups (run_id, group_key, month_key, amount_cents, prefix, count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, g.Key, g.MonthKey, g.AmountCents, g.Prefix, g.Count); err != nil {
			return fmt.Errorf("insert duplicate group %q: %w", g.Key, err)
		}
	}
	return nil
}

func insertRecurring(ctx context.Context, tx *sql.Tx, res *analysis.Result) error {
	for _, p := range res.Recurring {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recurring_patterns (run_id, pattern_key, description, count, months,
				average_cents, first_date, last_date, avg_interval_days, cadence, next_expected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, p.Key, p.Description, p.Count, strings.Join(p.Months, ","),
			core.Cents(p.AverageAmount), p.FirstDate, p.LastDate, p.AvgIntervalDays,
			string(p.Cadence), nullable(p.NextExpected)); err != nil {
			return fmt.Errorf("insert recurring pattern %q: %w", p.Key, err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
