// Package render writes an analysis result in one of several output
// formats.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"extrato/internal/analysis"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatGob  = "gob"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Renderer writes res to w.
type Renderer func(w io.Writer, res *analysis.Result) error

var renderers = map[string]Renderer{
	FormatText: Text,
	FormatJSON: JSON,
	FormatGob:  Gob,
	FormatCSV:  CSV,
	FormatHTML: HTML,
}

var extensions = map[string]string{
	FormatText: "txt",
	FormatJSON: "json",
	FormatGob:  "gob",
	FormatCSV:  "csv",
	FormatHTML: "html",
}

var contentTypes = map[string]string{
	FormatText: "text/plain; charset=utf-8",
	FormatJSON: "application/json",
	FormatGob:  "application/octet-stream",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatHTML: "text/html; charset=utf-8",
}

// Formats lists the supported format names in a stable order.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatGob, FormatCSV, FormatHTML}
}

// Valid reports whether format is supported.
func Valid(format string) bool {
	return slices.Contains(Formats(), format)
}

// Write renders res to w in format.
func Write(format string, w io.Writer, res *analysis.Result) error {
	r, ok := renderers[format]
	if !ok {
		return fmt.Errorf("%w: %q (supported: %v)", ErrUnknownFormat, format, Formats())
	}
	return r(w, res)
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	return extensions[format]
}

// ContentType returns the HTTP content type of format.
func ContentType(format string) string {
	return contentTypes[format]
}

// WriteFiles renders res once per format into dir as <base>.<ext> and
// returns the written paths.
func WriteFiles(dir, base string, formats []string, res *analysis.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		if !Valid(format) {
			return paths, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		path := filepath.Join(dir, base+"."+Extension(format))
		if err := writeFile(path, format, res); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path, format string, res *analysis.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := Write(format, f, res); err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	return nil
}
