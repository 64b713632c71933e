// Package api exposes the HTTP interface for the registry pipeline.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/store"
)

// CrawlRunner starts a crawl over seed URLs.
type CrawlRunner interface {
	Run(ctx context.Context, seeds []string) (*model.CrawlSummary, error)
}

// Server wires HTTP handlers to the store and the crawl runner.
type Server struct {
	router chi.Router
	store  store.Store
	runner CrawlRunner
}

// NewServer constructs a Server with middleware and routes.
func NewServer(s store.Store, runner CrawlRunner) *Server {
	srv := &Server{store: s, runner: runner}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", srv.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/crawl", srv.startCrawl)
		r.Route("/members/{id}", func(r chi.Router) {
			r.Get("/", srv.getMember)
			r.Get("/history", srv.getMemberHistory)
			r.Post("/verify", srv.verifyMember)
		})
	})

	srv.router = r
	return srv
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	Seeds []string `json:"seeds"`
}

// startCrawl kicks off a crawl in the background and returns immediately.
// Crawls can run for minutes; the summary lands in the logs.
func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Seeds) == 0 {
		writeError(w, http.StatusBadRequest, "seeds required")
		return
	}

	go func() {
		summary, err := s.runner.Run(context.Background(), req.Seeds)
		if err != nil {
			zap.L().Error("api: crawl failed", zap.Error(err))
			return
		}
		zap.L().Info("api: crawl complete",
			zap.Int("pages_visited", summary.PagesVisited),
			zap.Int("members_updated", summary.MembersUpdated),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"seeds":  req.Seeds,
	})
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	member, err := s.store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) getMemberHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	entries, err := s.store.ListExtractionLog(r.Context(), model.EntityTypeMember, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id,
		"entries":   entries,
	})
}

type verifyRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Party    string `json:"party"`
	District string `json:"district"`
}

// verifyMember applies human corrections and raises the guard. Omitted
// fields keep their current values.
func (s *Server) verifyMember(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	member, err := s.store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if req.Name != "" {
		member.Name = req.Name
	}
	if req.Role != "" {
		member.Role = req.Role
	}
	if req.Party != "" {
		member.Party = req.Party
	}
	if req.District != "" {
		member.District = req.District
	}

	if err := s.store.VerifyMember(r.Context(), member); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify member")
		return
	}

	updated, err := s.store.GetMember(r.Context(), id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload member")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return 0, false
	}
	return id, true
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.L().Error("api: panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("api: write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
