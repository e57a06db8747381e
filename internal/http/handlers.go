package http

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"extrato/internal/cache"
	"extrato/internal/core"
	"extrato/internal/log"
	"extrato/internal/middleware/trace"
	"extrato/internal/query"
	"extrato/internal/render"
	"extrato/internal/source"
)

const (
	defaultFormat     = render.FormatJSON
	defaultUploadName = "upload.csv"
	uploadField       = "file"
)

var errEmptyUpload = errors.New("request body is empty")

type metrics struct {
	started  time.Time
	analyses int64
	failures int64
}

func (m *metrics) success() { atomic.AddInt64(&m.analyses, 1) }
func (m *metrics) failure() { atomic.AddInt64(&m.failures, 1) }

// handleAnalyze renders the analysis of an uploaded CSV in the requested
// format.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = defaultFormat
	}
	if !render.Valid(format) {
		s.writeError(w, r, fmt.Errorf("%w: %q (supported: %s)", render.ErrUnknownFormat, format, strings.Join(render.Formats(), ", ")))
		return
	}

	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.analyze(r.Context(), name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Render fully before writing so a failure still yields a clean 500.
	var buf bytes.Buffer
	if err := render.Write(format, &buf, res); err != nil {
		s.writeError(w, r, fmt.Errorf("render %s: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", render.ContentType(format))
	if format == render.FormatCSV || format == render.FormatGob {
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
			map[string]string{"filename": base + "-report." + render.Extension(format)}))
	}
	w.Header().Set("X-Run-ID", res.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type transactionsResponse struct {
	RunID        string             `json:"run_id"`
	SourceName   string             `json:"source_name"`
	Criteria     query.Criteria     `json:"criteria"`
	Count        int                `json:"count"`
	Total        float64            `json:"total"`
	Transactions []core.Transaction `json:"transactions"`
}

// handleTransactions returns the enriched transactions of an uploaded CSV
// that match the query parameters.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	criteria, err := query.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.analyze(r.Context(), name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	txs := query.Filter(res.Transactions, criteria)
	var total float64
	for _, t := range txs {
		total += t.Amount
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Filtered transactions",
		log.FieldOperation, log.OpFilter,
		log.FieldRunID, res.RunID,
		"matched", len(txs))

	writeJSON(w, http.StatusOK, transactionsResponse{
		RunID:        res.RunID,
		SourceName:   res.SourceName,
		Criteria:     criteria,
		Count:        len(txs),
		Total:        total,
		Transactions: txs,
	})
}

// readUpload returns the uploaded file name and contents. The CSV may be
// the raw request body or the "file" part of a multipart form.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	var body io.Reader = r.Body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("%w: multipart form needs a %q part", errEmptyUpload, uploadField)
		}
		defer file.Close()
		if name == "" {
			name = header.Filename
		}
		body = file
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil, errEmptyUpload
	}
	if name == "" {
		name = defaultUploadName
	}
	return filepath.Base(name), data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady verifies the pipeline and the report template.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.pipeline == nil || len(s.pipeline.Rules()) == 0 {
		checks["pipeline"] = "failed: no category rules loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["pipeline"] = map[string]any{"status": "ok", "rules": len(s.pipeline.Rules())}
	}

	if err := render.CheckTemplates(); err != nil {
		checks["templates"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	checks["result_cache"] = map[string]any{"entries": s.results.Size(), "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	results := s.results.Stats()
	var memo cache.Stats
	if s.pipeline != nil {
		memo = s.pipeline.ClassifierStats()
	}

	counter := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %v\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", s.tracer.TotalRequests())
	counter("analyses_total", "Completed analysis runs", atomic.LoadInt64(&s.metrics.analyses))
	counter("analysis_failures_total", "Analysis runs that failed", atomic.LoadInt64(&s.metrics.failures))
	counter("result_cache_hits_total", "Uploads served from the result cache", results.Hits)
	counter("result_cache_misses_total", "Uploads that required a new run", results.Misses)
	gauge("result_cache_entries", "Cached analysis results", results.Size)
	counter("classifier_memo_hits_total", "Descriptions classified from the memo", memo.Hits)
	counter("classifier_memo_misses_total", "Descriptions classified by rule scan", memo.Misses)
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", s.limiter.Hits())
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", s.limiter.ActiveClients())
	counter("suspicious_requests_total", "Requests flagged as suspicious", s.detector.SuspiciousRequests())
	gauge("uptime_seconds", "Server uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.metrics.started).Seconds()))
}

// statusFor maps an error onto an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	var parseErr *csv.ParseError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, core.ErrMissingColumn),
		errors.Is(err, core.ErrNoData),
		errors.Is(err, source.ErrEmptyTable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, query.ErrInvalidCriteria),
		errors.Is(err, render.ErrUnknownFormat),
		errors.Is(err, errEmptyUpload):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, "malformed CSV: " + parseErr.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	logger := log.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, code)
	}
	writeJSON(w, code, errorResponse{Error: msg, RequestID: trace.FromRequest(r)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
