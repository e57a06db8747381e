package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"extrato/internal/analysis"
)

// Data sources understood by DATA_SOURCE.
const (
	SourceCSV    = "csv"
	SourceSheets = "sheets"
)

var (
	validSources    = []string{SourceCSV, SourceSheets}
	validFormats    = []string{"text", "json", "gob", "csv", "html"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64

	// Input
	DataSource   string
	DateFormats  []string
	ParseWorkers int

	// Analysis
	CategoryRulesFile    string
	OutlierThreshold     float64
	MinOccurrences       int
	TopN                 int
	DescriptionPrefixLen int
	TrendWindowMonths    int
	MerchantLimit        int
	ClassifierCacheSize  int

	// Output
	OutputDir        string
	OutputFormats    []string
	SQLiteExportPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string
	GoogleSheetRange    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	defaults := analysis.DefaultOptions()

	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),

		DataSource:   strings.ToLower(getEnv("DATA_SOURCE", SourceCSV)),
		DateFormats:  getEnvList("DATE_FORMATS", defaults.DateFormats),
		ParseWorkers: getEnvInt("PARSE_WORKERS", runtime.NumCPU()),

		CategoryRulesFile:    getEnv("CATEGORY_RULES_FILE", ""),
		OutlierThreshold:     getEnvFloat("OUTLIER_THRESHOLD", defaults.OutlierThreshold),
		MinOccurrences:       getEnvInt("MIN_OCCURRENCES", defaults.MinOccurrences),
		TopN:                 getEnvInt("TOP_N", defaults.TopN),
		DescriptionPrefixLen: getEnvInt("DESCRIPTION_PREFIX_LEN", defaults.DescriptionPrefixLen),
		TrendWindowMonths:    getEnvInt("TREND_WINDOW_MONTHS", defaults.TrendWindowMonths),
		MerchantLimit:        getEnvInt("MERCHANT_LIMIT", defaults.MerchantLimit),
		ClassifierCacheSize:  getEnvInt("CLASSIFIER_CACHE_SIZE", defaults.ClassifierCacheSize),

		OutputDir:        getEnv("OUTPUT_DIR", "./reports"),
		OutputFormats:    getEnvList("OUTPUT_FORMATS", []string{"text"}),
		SQLiteExportPath: getEnv("SQLITE_EXPORT_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "extrato"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "analysis_requests"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleSheetRange:    getEnv("GOOGLE_SHEET_RANGE", ""),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// AnalysisOptions maps the analysis settings onto pipeline options.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		OutlierThreshold:     c.OutlierThreshold,
		MinOccurrences:       c.MinOccurrences,
		TopN:                 c.TopN,
		DescriptionPrefixLen: c.DescriptionPrefixLen,
		TrendWindowMonths:    c.TrendWindowMonths,
		MerchantLimit:        c.MerchantLimit,
		DateFormats:          c.DateFormats,
		ParseWorkers:         c.ParseWorkers,
		ClassifierCacheSize:  c.ClassifierCacheSize,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}

	if !slices.Contains(validSources, c.DataSource) {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	if c.DataSource == SourceSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
		if c.GoogleSheetName == "" && c.GoogleSheetRange == "" {
			errors = append(errors, "Google Sheet name or range is required when using sheets source")
		}
	}

	if len(c.DateFormats) == 0 {
		errors = append(errors, "at least one date format is required")
	}
	if c.ParseWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid parse workers %d: must be at least 1", c.ParseWorkers))
	}

	if c.CategoryRulesFile != "" {
		if _, err := os.Stat(c.CategoryRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("category rules file does not exist: %s", c.CategoryRulesFile))
		}
	}

	if math.IsNaN(c.OutlierThreshold) || c.OutlierThreshold < 0 {
		errors = append(errors, fmt.Sprintf("invalid outlier threshold %v: must be non-negative", c.OutlierThreshold))
	}
	for _, v := range []struct {
		name  string
		value int
		min   int
	}{
		{"min occurrences", c.MinOccurrences, 1},
		{"top N", c.TopN, 1},
		{"description prefix length", c.DescriptionPrefixLen, 1},
		{"trend window", c.TrendWindowMonths, 0},
		{"merchant limit", c.MerchantLimit, 1},
		{"classifier cache size", c.ClassifierCacheSize, 0},
	} {
		if v.value < v.min {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be at least %d", v.name, v.value, v.min))
		}
	}

	for _, f := range c.OutputFormats {
		if !slices.Contains(validFormats, f) {
			errors = append(errors, fmt.Sprintf("invalid output format '%s': must be one of %v", f, validFormats))
		}
	}

	if c.SQLiteExportPath != "" {
		dir := filepath.Dir(c.SQLiteExportPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite export directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
