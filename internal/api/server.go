package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/metrics"
	"github.com/JakeFAU/jobscout/internal/search"
)

// Version is reported by /api and /api/stats.
const Version = "5.0"

const (
	serviceName   = "JobScout API"
	engineName    = "HTTP Directo + Caché + Paralelo"
	maxErrorRunes = 200
)

// Searcher is the search pipeline the handlers drive.
type Searcher interface {
	SearchWithOutcome(ctx context.Context, career, location string) ([]jobs.Listing, search.Outcome, error)
	Catalog() jobs.Catalog
	SourceNames() []jobs.SourceName
}

// Config controls the HTTP surface.
type Config struct {
	// StaticDir, when set, is served at "/".
	StaticDir string
	// RequestTimeout bounds each request. It must exceed the search deadline.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the search pipeline and cache.
type Server struct {
	router   chi.Router
	searcher Searcher
	cache    jobs.CacheStore
	clock    jobs.Clock
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, cache jobs.CacheStore, clock jobs.Clock, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		searcher: searcher,
		cache:    cache,
		clock:    clock,
		logger:   logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.info)
		r.Get("/scrape", s.scrape)
		r.Get("/careers", s.careers)
		r.Get("/stats", s.stats)
		r.Get("/health", s.health)
	})
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type queryPayload struct {
	Career   string `json:"career"`
	Location string `json:"location"`
}

type scrapeResponse struct {
	Success     bool           `json:"success"`
	Query       queryPayload   `json:"query"`
	Total       int            `json:"total"`
	TimeSeconds float64        `json:"time_seconds"`
	Jobs        []jobs.Listing `json:"jobs"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	career := strings.TrimSpace(params.Get("career"))
	location := strings.TrimSpace(params.Get("location"))
	if location == "" {
		location = jobs.DefaultLocation
	}
	if career == "" {
		writeError(w, http.StatusBadRequest, "El parámetro 'career' es requerido")
		return
	}

	start := s.clock.Now()
	listings, outcome, err := s.searcher.SearchWithOutcome(r.Context(), career, location)
	if err != nil {
		var vErr *jobs.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Carrera '%s' no válida", career))
			return
		}
		s.logger.Error("search failed",
			zap.String("career", career),
			zap.String("location", location),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, truncate(err.Error(), maxErrorRunes))
		return
	}
	if listings == nil {
		listings = []jobs.Listing{}
	}
	elapsed := s.clock.Now().Sub(start).Seconds()
	s.logger.Debug("search served",
		zap.String("career", career),
		zap.Bool("cache_hit", outcome.CacheHit),
		zap.Int("total", len(listings)),
	)
	writeJSON(w, http.StatusOK, scrapeResponse{
		Success:     true,
		Query:       queryPayload{Career: career, Location: location},
		Total:       len(listings),
		TimeSeconds: math.Round(elapsed*100) / 100,
		Jobs:        listings,
	})
}

func (s *Server) careers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.searcher.Catalog())
}

type statsResponse struct {
	Cache   jobs.CacheStats   `json:"cache"`
	Sources []jobs.SourceName `json:"sources"`
	Version string            `json:"version"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	cacheStats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, truncate(err.Error(), maxErrorRunes))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Cache:   cacheStats,
		Sources: s.searcher.SourceNames(),
		Version: Version,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.clock.Now().Format(time.RFC3339Nano),
	})
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    serviceName,
		"version": Version,
		"engine":  engineName,
		"status":  "online",
	})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", requestID(r.Context())),
					zap.Any("panic", rec),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
