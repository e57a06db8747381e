package source

import (
	"context"
	"fmt"
	"io"

	"extrato/internal/config"
	"extrato/internal/log"
	"extrato/internal/sheets"
	gsheet "extrato/internal/sheets/google"
)

// Type represents the kind of source
type Type string

const (
	CSVType    Type = config.SourceCSV
	SheetsType Type = config.SourceSheets
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the source type is valid
func (t Type) IsValid() bool {
	switch t {
	case CSVType, SheetsType:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build a source.
type Config struct {
	Type Type

	// CSV specific: a path, or a reader which takes precedence.
	Path   string
	Reader io.Reader
	Name   string

	// Google Sheets specific
	SpreadsheetID string
	SheetName     string
	SheetRange    string
}

// FromAppConfig builds a source config for the configured DATA_SOURCE.
// path is only used by the csv source.
func FromAppConfig(appConfig *config.Config, path string) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(appConfig.DataSource)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid source type in config: %s", appConfig.DataSource)
	}
	return Config{
		Type:          t,
		Path:          path,
		SpreadsheetID: appConfig.GoogleSpreadsheetID,
		SheetName:     appConfig.GoogleSheetName,
		SheetRange:    appConfig.GoogleSheetRange,
	}, nil
}

// Validate validates the source configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Type)
	}
	switch c.Type {
	case CSVType:
		if c.Path == "" && c.Reader == nil {
			return fmt.Errorf("an input path is required for csv source")
		}
	case SheetsType:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
		}
		if c.SheetName == "" && c.SheetRange == "" {
			return fmt.Errorf("Google Sheet name or range is required for sheets source")
		}
	}
	return nil
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the source and optional cleanup function
type Result struct {
	Source  Source
	Cleanup CleanupFunc
}

// Factory creates sources based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// newRangeReader is replaced in tests.
	newRangeReader func(ctx context.Context, spreadsheetID string, logger *log.Logger) (sheets.RangeReader, error)
}

// NewFactory creates a new source factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentSource),
		newRangeReader: func(ctx context.Context, id string, logger *log.Logger) (sheets.RangeReader, error) {
			return gsheet.New(ctx, id, logger)
		},
	}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVType:
		return f.createCSVSource(config), nil
	case SheetsType:
		return f.createSheetsSource(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVSource(config Config) *Result {
	if config.Reader != nil {
		name := config.Name
		if name == "" {
			name = "upload"
		}
		f.logger.Debug("Initialized CSV reader source", log.FieldSource, name)
		return &Result{Source: CSVReader{Name: name, Reader: config.Reader}}
	}
	f.logger.Debug("Initialized CSV file source", log.FieldSource, config.Path)
	return &Result{Source: CSVFile{Path: config.Path}}
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*Result, error) {
	reader, err := f.newRangeReader(ctx, config.SpreadsheetID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	rng := gsheet.RangeFor(config.SheetName, config.SheetRange)
	f.logger.Info("Initialized Google Sheets source", "range", rng)
	return &Result{Source: Sheets{Name: config.SheetName, Range: rng, Reader: reader}}, nil
}
