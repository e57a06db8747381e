package render

import (
	"fmt"
	"html/template"
	"io"
	"sync"

	"extrato/internal/analysis"
	"extrato/web"
)

var (
	reportOnce sync.Once
	reportTmpl *template.Template
	reportErr  error
)

func reportTemplate() (*template.Template, error) {
	reportOnce.Do(func() {
		reportTmpl, reportErr = template.New("report.html").Funcs(template.FuncMap{
			"amount": amount,
			"pct":    func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		}).ParseFS(web.TemplatesFS, "templates/report.html")
	})
	return reportTmpl, reportErr
}

// HTML writes a standalone HTML report.
func HTML(w io.Writer, res *analysis.Result) error {
	t, err := reportTemplate()
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}
	return t.Execute(w, newView(res))
}

// CheckTemplates reports whether the embedded report template parses.
func CheckTemplates() error {
	_, err := reportTemplate()
	return err
}
