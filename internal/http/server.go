// Package http serves the analysis API.
package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"extrato/internal/analysis"
	"extrato/internal/cache"
	"extrato/internal/config"
	"extrato/internal/log"
	"extrato/internal/middleware/ratelimit"
	"extrato/internal/middleware/security"
	"extrato/internal/middleware/trace"
	"extrato/internal/source"
)

const (
	resultCacheSize = 32
	resultCacheTTL  = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

type Server struct {
	http.Server

	pipeline *analysis.Pipeline
	sources  source.Factory
	cfg      *config.Config
	logger   *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// Identical uploads within resultCacheTTL reuse the earlier result.
	results *cache.LRUCache[string, *analysis.Result]
	caches  *cache.Manager

	metrics      metrics
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware into a ready-to-run http.Server.
func NewServer(cfg *config.Config, pipeline *analysis.Pipeline, sources source.Factory, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		pipeline: pipeline,
		sources:  sources,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		tracer:   trace.NewMiddleware(),
		results:  cache.NewLRUCache[string, *analysis.Result](resultCacheSize, resultCacheTTL),
		caches:   cache.NewManager(logger),
		metrics:  metrics{started: time.Now()},
	}
	s.caches.Register(s.results)
	s.caches.StartCleanup(cleanupInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, http.MethodPost)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.flagSuspicious(h)
	h = log.Middleware(s.logger, trace.FromRequest, s.detector.ExtractClientIP)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// analyze runs the pipeline over an uploaded CSV, reusing a cached result
// for identical input.
func (s *Server) analyze(ctx context.Context, name string, data []byte) (*analysis.Result, error) {
	key := uploadKey(name, data)
	if res, ok := s.results.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Result cache hit", log.FieldRunID, res.RunID)
		return res, nil
	}

	src, err := s.sources.Create(ctx, source.Config{
		Type:   source.CSVType,
		Reader: bytes.NewReader(data),
		Name:   name,
	})
	if err != nil {
		return nil, err
	}
	if src.Cleanup != nil {
		defer src.Cleanup()
	}
	table, err := src.Source.Read(ctx)
	if err != nil {
		s.metrics.failure()
		return nil, err
	}

	res, err := s.pipeline.AnalyzeTable(ctx, table.Name, table.Header, table.Rows)
	if err != nil {
		s.metrics.failure()
		return nil, err
	}
	s.metrics.success()
	s.results.Set(key, res)
	return res, nil
}

func uploadKey(name string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
