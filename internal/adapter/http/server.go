package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/mrms-radar-service/internal/cache"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the radar API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	products   *cache.ProductCache
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the radar routes. When staticDir is
// non-empty, the root path serves files from it (the bundled map page).
func NewServer(addr string, products *cache.ProductCache, ready ReadinessChecker, staticDir string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		products: products,
		logger:   logger,
	}

	mux.HandleFunc("GET /api/radar/latest", s.handleLatest)
	mux.HandleFunc("GET /api/radar/metadata", s.handleMetadata)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleLatest serves the most recent overlay PNG. The image changes every
// refresh, so clients must revalidate rather than cache it.
func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	product, ok := s.products.Get()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no radar data available yet"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Radar-Timestamp", product.Metadata.Timestamp)
	if _, err := w.Write(product.PNG); err != nil {
		s.logger.Warn("write overlay response failed", "error", err)
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	product, ok := s.products.Get()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no radar data available yet"})
		return
	}
	writeJSON(w, http.StatusOK, product.Metadata)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
