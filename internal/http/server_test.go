package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"extrato/internal/analysis"
	"extrato/internal/classifier"
	"extrato/internal/config"
	"extrato/internal/log"
	"extrato/internal/source"
)

const statement = `Data,Descrição,Valor
05/01/2025,IFOOD Restaurante,"-20,00"
05/01/2025,IFOOD Restaurante,"-20,00"
10/02/2025,Uber Trip,-10
20/02/2025,Hospital Sirio,"-1.000,00"
`

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	p, err := analysis.New(classifier.DefaultRules(), analysis.DefaultOptions(), log.Discard())
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	cfg := &config.Config{Port: "0", MaxUploadBytes: maxUpload}
	s := NewServer(cfg, p, source.NewFactory(log.Discard()), log.Discard())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyze_JSON(t *testing.T) {
	s := newTestServer(t, 1<<20)
	rec := do(s, http.MethodPost, "/api/analyze", "text/csv", []byte(statement))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["run_id"] == "" || body["run_id"] != rec.Header().Get("X-Run-ID") {
		t.Fatalf("run id mismatch: body=%v header=%q", body["run_id"], rec.Header().Get("X-Run-ID"))
	}
	if body["source_name"] != defaultUploadName {
		t.Fatalf("unexpected source name %v", body["source_name"])
	}
	if len(body["duplicates"].([]any)) != 1 {
		t.Fatalf("expected one duplicate group, got %v", body["duplicates"])
	}
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing middleware headers: %v", rec.Header())
	}
}

func TestAnalyze_Formats(t *testing.T) {
	s := newTestServer(t, 1<<20)
	tests := []struct {
		format      string
		contentType string
		contains    string
		attachment  bool
	}{
		{"text", "text/plain", "== Categories ==", false},
		{"html", "text/html", "Hospital Sirio", false},
		{"csv", "text/csv", "date,description,amount", true},
		{"gob", "application/octet-stream", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/analyze?name=jan.csv&format="+tt.format, "text/csv", []byte(statement))
			if rec.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Fatalf("content type %q, want prefix %q", ct, tt.contentType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("body missing %q", tt.contains)
			}
			if got := rec.Header().Get("Content-Disposition"); tt.attachment != strings.Contains(got, "jan-report."+tt.format) {
				t.Fatalf("unexpected Content-Disposition %q", got)
			}
		})
	}
}

func TestAnalyze_Errors(t *testing.T) {
	s := newTestServer(t, 256)
	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"unknown format", "/api/analyze?format=pdf", statement, http.StatusBadRequest},
		{"empty body", "/api/analyze", "  \n", http.StatusBadRequest},
		{"missing column", "/api/analyze", "when,what\n01/01/2025,x\n", http.StatusUnprocessableEntity},
		{"no valid rows", "/api/analyze", "date,description,amount\nxx,a,abc\n", http.StatusUnprocessableEntity},
		{"too large", "/api/analyze", statement + strings.Repeat("01/03/2025,Padding row,-1\n", 20), http.StatusRequestEntityTooLarge},
		{"bad criteria", "/api/transactions?min_amount=abc", statement, http.StatusBadRequest},
		{"inverted dates", "/api/transactions?start_date=2025-03-01&end_date=2025-01-01", statement, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, tt.target, "text/csv", []byte(tt.body))
			if rec.Code != tt.want {
				t.Fatalf("status=%d, want %d (body=%s)", rec.Code, tt.want, rec.Body.String())
			}
			var e errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" || e.RequestID == "" {
				t.Fatalf("expected JSON error with request id, got %s", rec.Body.String())
			}
		})
	}
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 1<<20)
	if rec := do(s, http.MethodGet, "/api/analyze", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestAnalyze_Multipart(t *testing.T) {
	s := newTestServer(t, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "march.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(statement))
	mw.Close()

	rec := do(s, http.MethodPost, "/api/analyze", mw.FormDataContentType(), buf.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"source_name": "march.csv"`) {
		t.Fatalf("expected multipart file name as source name")
	}
}

func TestAnalyze_ResultCache(t *testing.T) {
	s := newTestServer(t, 1<<20)
	first := do(s, http.MethodPost, "/api/analyze", "text/csv", []byte(statement))
	second := do(s, http.MethodPost, "/api/analyze?format=text", "text/csv", []byte(statement))
	if first.Header().Get("X-Run-ID") != second.Header().Get("X-Run-ID") {
		t.Fatal("identical uploads should reuse the cached result")
	}
	other := do(s, http.MethodPost, "/api/analyze?name=other.csv", "text/csv", []byte(statement))
	if other.Header().Get("X-Run-ID") == first.Header().Get("X-Run-ID") {
		t.Fatal("a different upload name is a different input")
	}
	if st := s.results.Stats(); st.Hits != 1 || st.Size != 2 {
		t.Fatalf("unexpected cache stats %+v", st)
	}
}

func TestTransactions(t *testing.T) {
	s := newTestServer(t, 1<<20)
	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"category=Food", 2},
		{"min_amount=15", 3},
		{"min_amount=15&max_amount=100", 2},
		{"start_date=2025-02-01", 2},
		{"q=uber", 1},
		{"category=Food&start_date=2025-02-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/transactions?"+tt.query, "text/csv", []byte(statement))
			if rec.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			var resp transactionsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Count != tt.want || len(resp.Transactions) != tt.want {
				t.Fatalf("got %d transactions, want %d", resp.Count, tt.want)
			}
		})
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	s := newTestServer(t, 1<<20)
	do(s, http.MethodPost, "/api/analyze", "text/csv", []byte(statement))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rec.Code, rec.Body.String())
		}
	}

	rec := do(s, http.MethodGet, "/metrics", "", nil)
	for _, want := range []string{"analyses_total 1", "http_requests_total 4", "classifier_memo_misses_total", "uptime_seconds"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q:\n%s", want, rec.Body.String())
		}
	}
}

func TestReadyAndMetrics_WithoutPipeline(t *testing.T) {
	cfg := &config.Config{Port: "0", MaxUploadBytes: 1 << 20}
	s := NewServer(cfg, nil, source.NewFactory(log.Discard()), log.Discard())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	if rec := do(s, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rec.Code)
	}
	rec := do(s, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "classifier_memo_hits_total 0") {
		t.Fatalf("expected zero memo counters:\n%s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1<<20)
	var last int
	for i := 0; i < 61; i++ {
		last = do(s, http.MethodPost, "/api/analyze", "text/csv", []byte(statement)).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 60 requests, got %d", last)
	}
	if rec := do(s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET requests are not rate limited, got %d", rec.Code)
	}
}
