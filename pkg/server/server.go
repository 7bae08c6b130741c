package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/elonfeng/extradar/internal/store"
	"github.com/elonfeng/extradar/pkg/opportunity"
)

// Server provides the HTTP API.
type Server struct {
	store  store.Store
	engine *opportunity.Engine
	port   int
	logger *slog.Logger
	router chi.Router
}

// New creates a new HTTP server.
func New(s store.Store, engine *opportunity.Engine, port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{
		store:  s,
		engine: engine,
		port:   port,
		logger: logger,
	}
	srv.router = srv.routes()
	return srv
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/market", s.handleMarket)
		r.Get("/categories/{id}", s.handleCategory)
		r.Get("/opportunities", s.handleOpportunities)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves the API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("extradar server listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("extradar server stopped")
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog":    counts,
		"scoring":    s.engine.Constants(),
		"pagination": s.engine.Limits(),
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.engine.Market(r.Context(), parseCriteria(q), opportunity.MarketQuery{
		Sort:     q.Get("sort"),
		Dir:      q.Get("dir"),
		Page:     intParam(q, "page", 1),
		PageSize: intParam(q, "pageSize", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category id"})
		return
	}

	q := r.URL.Query()
	view, err := s.engine.Category(r.Context(), id, parseCriteria(q), opportunity.CategoryQuery{
		Sort:     q.Get("sort"),
		Dir:      q.Get("dir"),
		Page:     intParam(q, "page", 1),
		PageSize: intParam(q, "pageSize", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.engine.Opportunities(r.Context(), parseCriteria(q), opportunity.OpportunityQuery{
		Sort:     q.Get("sort"),
		Dir:      q.Get("dir"),
		Limit:    intParam(q, "limit", 0),
		Page:     intParam(q, "page", 1),
		PageSize: intParam(q, "pageSize", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, opportunity.ErrCategoryNotFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write.
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// parseCriteria reads the shared filter parameters. Malformed values are
// ignored and the default applies.
func parseCriteria(q url.Values) opportunity.Criteria {
	c := opportunity.DefaultCriteria()
	if v, ok := int64Param(q, "minUsers"); ok {
		c.MinUsers = v
	}
	if v, ok := int64Param(q, "maxUsers"); ok {
		c.MaxUsers = &v
	}
	if v, ok := floatParam(q, "ratingMin"); ok {
		c.RatingMin = v
	}
	if v, ok := floatParam(q, "ratingMax"); ok {
		c.RatingMax = v
	}
	c.ExcludeTopPct = intParam(q, "excludeTopPct", 0)
	c.Language = q.Get("lang")
	c.Name = q.Get("extName")
	return c.Normalize()
}

func intParam(q url.Values, key string, def int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return def
	}
	return v
}

func int64Param(q url.Values, key string) (int64, bool) {
	v, err := strconv.ParseInt(q.Get(key), 10, 64)
	return v, err == nil
}

func floatParam(q url.Values, key string) (float64, bool) {
	v, err := strconv.ParseFloat(q.Get(key), 64)
	return v, err == nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
