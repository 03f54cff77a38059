package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fieldnote/insight/internal/pipeline"
	"github.com/fieldnote/insight/internal/store"
)

// Runner is the analysis entry point the HTTP surface drives. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	Process(ctx context.Context, raw string, meta pipeline.RequestMeta) (*pipeline.AnalysisResult, *pipeline.Receipt, error)
}

// Fetcher reads persisted analyses back for browsing. Satisfied by
// *store.Store.
type Fetcher interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*store.AnalysisRecord, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	runner  Runner
	fetcher Fetcher
	logger  *slog.Logger
}

func NewServer(port int, runner Runner, fetcher Fetcher, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		runner:  runner,
		fetcher: fetcher,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/insight/status", s.status)
	router.Post("/api/v1/analyses", s.createAnalysis)
	router.Get("/api/v1/analyses/{id}", s.getAnalysis)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "insight",
		"status":  "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
