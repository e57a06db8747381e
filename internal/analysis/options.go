package analysis

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"extrato/internal/core"
)

// Options are the tunables of a pipeline run.
type Options struct {
	OutlierThreshold     float64  `json:"outlier_threshold"`
	MinOccurrences       int      `json:"min_occurrences"`
	TopN                 int      `json:"top_n"`
	DescriptionPrefixLen int      `json:"description_prefix_len"`
	TrendWindowMonths    int      `json:"trend_window_months"`
	MerchantLimit        int      `json:"merchant_limit"`
	DateFormats          []string `json:"date_formats"`
	ParseWorkers         int      `json:"parse_workers"`
	ClassifierCacheSize  int      `json:"classifier_cache_size"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		OutlierThreshold:     3.0,
		MinOccurrences:       2,
		TopN:                 10,
		DescriptionPrefixLen: 20,
		TrendWindowMonths:    0,
		MerchantLimit:        10,
		DateFormats:          append([]string(nil), core.DefaultDateFormats...),
		ParseWorkers:         runtime.NumCPU(),
		ClassifierCacheSize:  1024,
	}
}

// Validate reports every invalid option at once.
func (o Options) Validate() error {
	var errs []string

	if math.IsNaN(o.OutlierThreshold) || math.IsInf(o.OutlierThreshold, 0) || o.OutlierThreshold < 0 {
		errs = append(errs, "outlier threshold must be a non-negative number")
	}
	if o.MinOccurrences < 1 {
		errs = append(errs, "min occurrences must be at least 1")
	}
	if o.TopN < 1 {
		errs = append(errs, "top N must be at least 1")
	}
	if o.DescriptionPrefixLen < 1 {
		errs = append(errs, "description prefix length must be at least 1")
	}
	if o.TrendWindowMonths < 0 {
		errs = append(errs, "trend window cannot be negative")
	}
	if o.MerchantLimit < 1 {
		errs = append(errs, "merchant limit must be at least 1")
	}
	if o.ParseWorkers < 1 {
		errs = append(errs, "parse workers must be at least 1")
	}
	if o.ClassifierCacheSize < 0 {
		errs = append(errs, "classifier cache size cannot be negative")
	}
	for _, f := range o.DateFormats {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, "date formats cannot contain blanks")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(errs, "; "))
	}
	return nil
}
