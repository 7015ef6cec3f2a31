// Package server exposes the agent's status and documentation tools over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Tools is the read-only documentation surface served under /api.
type Tools interface {
	Retrieve(ctx context.Context, query string, k int) string
	ListPages(ctx context.Context) []string
	PageContent(ctx context.Context, url string) string
}

type Server struct {
	tools    Tools
	running  func() bool
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// New creates a server. running reports whether the background loop is alive;
// nil means there is none.
func New(tools Tools, running func() bool, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if running == nil {
		running = func() bool { return false }
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		tools:    tools,
		running:  running,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/", s.rootHandler).Methods("GET")
	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/retrieve", s.retrieveHandler).Methods("GET")
	api.HandleFunc("/pages", s.pagesHandler).Methods("GET")
	api.HandleFunc("/page", s.pageHandler).Methods("GET")

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "ALS AI Tweet Agent is running",
	})
}

type healthResponse struct {
	Status                string `json:"status"`
	BackgroundTaskRunning bool   `json:"background_task_running"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	running := s.running()
	status := "degraded"
	if running {
		status = "healthy"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, BackgroundTaskRunning: running})
}

type retrieveResponse struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}

func (s *Server) retrieveHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k must be a positive integer"})
			return
		}
		k = n
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:  query,
		Result: s.tools.Retrieve(r.Context(), query, k),
	})
}

func (s *Server) pagesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"pages": s.tools.ListPages(r.Context())})
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter url"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":     url,
		"content": s.tools.PageContent(r.Context(), url),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
