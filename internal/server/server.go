// Package server exposes the read-side review API: specimen listings, full
// records, lineage chains, and the flag queue. Writes stay on the CLI; the
// one mutation here is attaching an external review reference.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/provenance"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

const defaultPageLimit = 50

// Server handles review API requests.
type Server struct {
	store   store.Store
	tracker *provenance.Tracker
}

// New creates a Server over the given store.
func New(st store.Store) *Server {
	return &Server{store: st, tracker: provenance.New(st)}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/specimens", s.handleListSpecimens)
	r.Get("/specimens/{identity}", s.handleGetSpecimen)
	r.Get("/specimens/{identity}/lineage", s.handleLineage)
	r.Put("/specimens/{identity}/review", s.handleSetReview)
	r.Get("/records/by-catalog/{value}", s.handleByCatalog)
	r.Get("/flags", s.handleFlagCounts)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("review api listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSpecimens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SpecimenFilter{
		FlagKind: model.FlagKind(q.Get("flag")),
		After:    model.Identity(q.Get("after")),
		Limit:    defaultPageLimit,
	}
	if v := q.Get("reviewed"); v != "" {
		reviewed := v == "true"
		filter.Reviewed = &reviewed
	}

	specs, err := s.store.ListSpecimens(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"specimens": specs})
}

func (s *Server) handleGetSpecimen(w http.ResponseWriter, r *http.Request) {
	identity := model.Identity(chi.URLParam(r, "identity"))

	sp, err := s.store.GetSpecimen(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	rec, err := s.store.GetAggregate(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	flags, err := s.store.ListFlags(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"specimen": sp,
		"record":   rec,
		"flags":    flags,
	})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	identity := model.Identity(chi.URLParam(r, "identity"))

	lin, err := s.tracker.Lineage(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, lin)
}

func (s *Server) handleSetReview(w http.ResponseWriter, r *http.Request) {
	identity := model.Identity(chi.URLParam(r, "identity"))

	var req struct {
		ReviewRef string `json:"review_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ReviewRef == "" {
		http.Error(w, `{"error":"review_ref is required"}`, http.StatusBadRequest)
		return
	}

	if err := s.store.SetReviewRef(r.Context(), identity, req.ReviewRef); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleByCatalog(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")

	lins, err := s.tracker.ByCatalogNumber(r.Context(), value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_number": value,
		"holders":        lins,
	})
}

func (s *Server) handleFlagCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.FlagCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
