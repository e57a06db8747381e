// Package worker runs analysis requests received over AMQP.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"extrato/internal/amqp"
	"extrato/internal/analysis"
	"extrato/internal/config"
	"extrato/internal/log"
	"extrato/internal/render"
	"extrato/internal/source"
	"extrato/internal/storage"
)

// Publisher emits completion events.
type Publisher interface {
	PublishCompleted(ctx context.Context, msg *amqp.AnalysisCompleted) error
}

// ExportFunc writes a result to a SQLite file.
type ExportFunc func(ctx context.Context, path string, res *analysis.Result, logger *log.Logger) error

// AnalysisWorker reads the requested statement, analyzes it, writes the
// reports and publishes the outcome.
type AnalysisWorker struct {
	pipeline  *analysis.Pipeline
	sources   source.Factory
	publisher Publisher
	export    ExportFunc
	cfg       *config.Config
	logger    *log.Logger
}

func NewAnalysisWorker(pipeline *analysis.Pipeline, sources source.Factory, publisher Publisher, cfg *config.Config, logger *log.Logger) *AnalysisWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AnalysisWorker{
		pipeline:  pipeline,
		sources:   sources,
		publisher: publisher,
		export:    storage.ExportSQLite,
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRequest processes one request. Analysis failures are reported in
// the completion event and do not fail the handler; only a failed publish
// does, so the request is redelivered.
func (w *AnalysisWorker) HandleRequest(ctx context.Context, req *amqp.AnalysisRequest) error {
	start := time.Now()
	logger := w.logger.With("request_id", req.ID)

	done, err := w.process(ctx, req, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Analysis request failed", log.FieldError, err)
		done = &amqp.AnalysisCompleted{RequestID: req.ID, Error: err.Error()}
	} else {
		logger.InfoContext(ctx, "Analysis request completed",
			log.FieldRunID, done.RunID,
			"outputs", len(done.Outputs),
			log.FieldDuration, time.Since(start).Milliseconds())
	}
	done.CompletedAt = time.Now()

	if err := w.publisher.PublishCompleted(ctx, done); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	return nil
}

func (w *AnalysisWorker) process(ctx context.Context, req *amqp.AnalysisRequest, logger *log.Logger) (*amqp.AnalysisCompleted, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = w.cfg.OutputFormats
	}
	for _, f := range formats {
		if !render.Valid(f) {
			return nil, fmt.Errorf("%w: %s", render.ErrUnknownFormat, f)
		}
	}

	src, err := w.sources.Create(ctx, w.sourceConfig(req))
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	if src.Cleanup != nil {
		defer src.Cleanup()
	}

	table, err := src.Source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	res, err := w.pipeline.AnalyzeTable(ctx, table.Name, table.Header, table.Rows)
	if err != nil {
		return nil, err
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = w.cfg.OutputDir
	}
	outputs, err := render.WriteFiles(outDir, reportBase(table.Name, res.RunID), formats, res)
	if err != nil {
		return nil, fmt.Errorf("write reports: %w", err)
	}

	dbPath := req.SQLitePath
	if dbPath == "" {
		dbPath = w.cfg.SQLiteExportPath
	}
	if dbPath != "" {
		if err := w.export(ctx, dbPath, res, logger); err != nil {
			return nil, fmt.Errorf("export sqlite: %w", err)
		}
		outputs = append(outputs, dbPath)
	}

	return &amqp.AnalysisCompleted{
		RequestID:    req.ID,
		RunID:        res.RunID,
		SourceName:   res.SourceName,
		RowsRead:     res.RowsRead,
		RowsDropped:  res.RowsDropped,
		Transactions: len(res.Transactions),
		Trend:        string(res.Trend.Direction),
		Outputs:      outputs,
	}, nil
}

func (w *AnalysisWorker) sourceConfig(req *amqp.AnalysisRequest) source.Config {
	if req.Path != "" {
		return source.Config{Type: source.CSVType, Path: req.Path}
	}
	return source.Config{
		Type:          source.SheetsType,
		SpreadsheetID: w.cfg.GoogleSpreadsheetID,
		SheetName:     w.cfg.GoogleSheetName,
		SheetRange:    req.SheetRange,
	}
}

// reportBase names report files after the input and the first block of the
// run id, e.g. "statement-1b9d6bcd".
func reportBase(name, runID string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '!', ' ', '\'':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "report"
	}
	if i := strings.IndexByte(runID, '-'); i > 0 {
		runID = runID[:i]
	}
	return base + "-" + runID
}
