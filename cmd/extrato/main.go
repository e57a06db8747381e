// Command extrato analyzes a bank statement export and writes reports.
//
//	extrato -input statement.csv                  text report on stdout
//	extrato -input statement.csv -format html,json -out reports/
//	extrato -sheet 'Transactions!A:D' -format json
//	extrato -input statement.csv -category Food -from 2025-01-01
//	extrato -input statement.csv -due today
//	extrato -init-rules rules.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"extrato/internal/amqp"
	"extrato/internal/analysis"
	"extrato/internal/classifier"
	"extrato/internal/cli"
	"extrato/internal/config"
	"extrato/internal/core"
	"extrato/internal/log"
	"extrato/internal/patterns"
	"extrato/internal/query"
	"extrato/internal/render"
	"extrato/internal/source"
	"extrato/internal/storage"
)

type options struct {
	input     string
	sheet     string
	formats   string
	outDir    string
	rules     string
	initRules string
	sqlite    string
	due       string
	filter    url.Values
}

func main() {
	cli.LoadEnvFile()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "extrato:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("extrato", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "", "CSV file to analyze (- for stdin)")
	fs.StringVar(&o.sheet, "sheet", "", "Google Sheets A1 range to analyze instead of -input")
	fs.StringVar(&o.formats, "format", "", "comma-separated report formats: "+strings.Join(render.Formats(), ","))
	fs.StringVar(&o.outDir, "out", "", "write reports to this directory instead of stdout")
	fs.StringVar(&o.rules, "rules", "", "category rules YAML file")
	fs.StringVar(&o.initRules, "init-rules", "", "write the built-in category rules to this path and exit")
	fs.StringVar(&o.sqlite, "sqlite", "", "also export the result to this SQLite file")
	fs.StringVar(&o.due, "due", "", "list recurring payments due by this date, YYYY-MM-DD or today")

	filters := map[string]*string{
		query.ParamCategory:    fs.String("category", "", "only transactions in this category"),
		query.ParamMinAmount:   fs.String("min", "", "minimum absolute amount"),
		query.ParamMaxAmount:   fs.String("max", "", "maximum absolute amount"),
		query.ParamStartDate:   fs.String("from", "", "first date, YYYY-MM-DD"),
		query.ParamEndDate:     fs.String("to", "", "last date, YYYY-MM-DD"),
		query.ParamDescription: fs.String("q", "", "description substring"),
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	o.filter = url.Values{}
	for k, v := range filters {
		if *v != "" {
			o.filter.Set(k, *v)
		}
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if o.initRules != "" {
		if err := classifier.SaveRules(o.initRules, classifier.DefaultRules()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d category rules to %s\n", len(classifier.DefaultRules()), o.initRules)
		return nil
	}

	cfg := config.Load()
	if o.rules != "" {
		cfg.CategoryRulesFile = o.rules
	}
	if o.outDir != "" {
		cfg.OutputDir = o.outDir
	}
	if o.sqlite != "" {
		cfg.SQLiteExportPath = o.sqlite
	}
	if o.formats != "" {
		cfg.OutputFormats = splitList(o.formats)
	}
	formats := cfg.OutputFormats
	if err := cfg.Validate(); err != nil {
		return err
	}

	criteria, err := query.ParseCriteria(o.filter)
	if err != nil {
		return err
	}
	var dueBy time.Time
	if o.due != "" {
		if dueBy, err = parseDueDate(o.due, time.Now()); err != nil {
			return err
		}
	}
	if o.outDir == "" && criteria.IsZero() && dueBy.IsZero() {
		if err := checkStdoutFormats(formats); err != nil {
			return err
		}
	}

	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: stderr,
	})
	log.SetDefault(logger)

	pipeline, err := cli.NewPipeline(logger, cfg)
	if err != nil {
		return err
	}

	res, err := analyze(ctx, o, cfg, stdin, pipeline, logger)
	if err != nil {
		return err
	}

	if !criteria.IsZero() {
		if err := printTransactions(stdout, query.Filter(res.Transactions, criteria)); err != nil {
			return err
		}
	}
	if !dueBy.IsZero() {
		if err := printDue(stdout, res.Recurring, dueBy); err != nil {
			return err
		}
	}

	var outputs []string
	switch {
	case o.outDir != "":
		base := strings.TrimSuffix(filepath.Base(res.SourceName), filepath.Ext(res.SourceName))
		outputs, err = render.WriteFiles(o.outDir, base, formats, res)
		if err != nil {
			return err
		}
		for _, p := range outputs {
			fmt.Fprintln(stderr, "wrote", p)
		}
	case criteria.IsZero() && dueBy.IsZero():
		for _, f := range formats {
			if err := render.Write(f, stdout, res); err != nil {
				return err
			}
		}
	}

	if cfg.SQLiteExportPath != "" {
		if err := storage.ExportSQLite(ctx, cfg.SQLiteExportPath, res, logger); err != nil {
			return err
		}
		outputs = append(outputs, cfg.SQLiteExportPath)
	}

	if cfg.AMQPURL != "" {
		publishCompleted(ctx, cfg, res, outputs, logger)
	}
	return nil
}

func analyze(ctx context.Context, o options, cfg *config.Config, stdin io.Reader, pipeline *analysis.Pipeline, logger *log.Logger) (*analysis.Result, error) {
	var sc source.Config
	switch {
	case o.sheet != "" && o.input != "":
		return nil, errors.New("use either -input or -sheet, not both")
	case o.sheet != "":
		sc = source.Config{
			Type:          source.SheetsType,
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			SheetRange:    o.sheet,
		}
	case o.input == "-":
		sc = source.Config{Type: source.CSVType, Reader: stdin, Name: "stdin"}
	case o.input != "":
		sc = source.Config{Type: source.CSVType, Path: o.input}
	default:
		return nil, errors.New("an input is required: -input file.csv or -sheet range")
	}

	src, err := source.NewFactory(logger).Create(ctx, sc)
	if err != nil {
		return nil, err
	}
	if src.Cleanup != nil {
		defer src.Cleanup()
	}
	table, err := src.Source.Read(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.AnalyzeTable(ctx, table.Name, table.Header, table.Rows)
}

func printTransactions(w io.Writer, txs []core.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tCATEGORY\t")
	var total float64
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", t.Date, t.Description, core.FormatAmount(t.Amount, false), t.Category)
		total += t.Amount
	}
	fmt.Fprintf(tw, "\t%d transactions\t%s\t\t\n", len(txs), core.FormatAmount(total, false))
	return tw.Flush()
}

// checkStdoutFormats allows a single, non-binary report on stdout.
func checkStdoutFormats(formats []string) error {
	if len(formats) > 1 {
		return fmt.Errorf("writing %s needs -out; stdout takes one format", strings.Join(formats, ","))
	}
	if len(formats) == 1 && formats[0] == render.FormatGob {
		return errors.New("gob output is binary; use -out to write it to a file")
	}
	return nil
}

func parseDueDate(s string, now time.Time) (time.Time, error) {
	if strings.EqualFold(s, "today") {
		return now, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -due date %q, want YYYY-MM-DD or today", s)
	}
	return d, nil
}

func printDue(w io.Writer, recurring []patterns.RecurringPattern, by time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTION\tCADENCE\tLAST\tNEXT\tAVERAGE\t")
	n := 0
	for _, p := range recurring {
		if !p.IsDue(by) {
			continue
		}
		n++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.Description, p.Cadence, p.LastDate, p.NextExpected, core.FormatAmount(p.AverageAmount, false))
	}
	fmt.Fprintf(tw, "%d recurring payments due by %s\t\t\t\t\t\n", n, by.Format(time.DateOnly))
	return tw.Flush()
}

// publishCompleted announces the run on AMQP. Failures are logged only.
func publishCompleted(ctx context.Context, cfg *config.Config, res *analysis.Result, outputs []string, logger *log.Logger) {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, completion not published", log.FieldError, err)
		return
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = client.PublishCompleted(ctx, &amqp.AnalysisCompleted{
		RunID:        res.RunID,
		SourceName:   res.SourceName,
		RowsRead:     res.RowsRead,
		RowsDropped:  res.RowsDropped,
		Transactions: len(res.Transactions),
		Trend:        string(res.Trend.Direction),
		Outputs:      outputs,
		CompletedAt:  time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to publish completion", log.FieldError, err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
