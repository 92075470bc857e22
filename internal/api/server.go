// Package api exposes the HTTP interface for the acquisition service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/config"
	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Enqueuer is the dispatcher surface the server needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, class jobs.Class, identity string, payload jobs.Payload) (string, error)
	Status(identity string) (jobs.Job, bool)
}

// AnalysisIndex answers whether an item already has an analysis record.
type AnalysisIndex interface {
	Existing(ctx context.Context, itemID string) (pipeline.AnalysisRecord, bool, error)
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	dispatcher Enqueuer
	items      pipeline.ItemStore
	analyses   AnalysisIndex
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(dispatcher Enqueuer, items pipeline.ItemStore, analyses AnalysisIndex, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		items:      items,
		analyses:   analyses,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/ingestions", s.submitIngestion)
		r.Post("/analyses", s.submitAnalysis)
		r.Get("/jobs/{job_id}", s.getJobStatus)
		r.Post("/discovery/run", s.triggerDiscovery)
		r.Post("/feeds/poll", s.triggerFeedPoll)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Probe the item store; every other dependency degrades rather than
	// blocking readiness.
	if _, _, err := s.items.FindByFingerprint(r.Context(), "readyz-probe"); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "item store unavailable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type ingestionRequest struct {
	URL      string `json:"url"`
	Source   string `json:"source,omitempty"`
	Category string `json:"category,omitempty"`
}

func (s *Server) submitIngestion(w http.ResponseWriter, r *http.Request) {
	var req ingestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(s.logger, w, http.StatusBadRequest, "url is required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(s.logger, w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}
	if req.Category != "" {
		if _, ok := pipeline.ParseCategory(req.Category); !ok {
			writeError(s.logger, w, http.StatusBadRequest, "unknown category")
			return
		}
	}

	payload := jobs.Payload{URL: req.URL, Source: req.Source, Category: req.Category}
	jobID, err := s.dispatcher.Enqueue(r.Context(), jobs.ClassIngest, jobs.IngestIdentity(req.URL), payload)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

type analysisRequest struct {
	ItemID string `json:"item_id"`
}

func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeError(s.logger, w, http.StatusBadRequest, "item_id is required")
		return
	}
	if _, err := s.items.GetItem(r.Context(), req.ItemID); err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "item not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}

	// Re-submission of an analyzed item returns the existing record rather
	// than queuing a fresh run.
	if rec, ok, err := s.analyses.Existing(r.Context(), req.ItemID); err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	} else if ok {
		writeJSON(s.logger, w, http.StatusOK, map[string]any{
			"analysis_id": rec.ID,
			"item_id":     rec.ItemID,
			"created_at":  rec.CreatedAt,
		})
		return
	}

	payload := jobs.Payload{ItemID: req.ItemID}
	jobID, err := s.dispatcher.Enqueue(r.Context(), jobs.ClassAnalysis, jobs.AnalysisIdentity(req.ItemID), payload)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.dispatcher.Status(jobID)
	if !ok {
		writeError(s.logger, w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

type discoveryRequest struct {
	Domain string `json:"domain,omitempty"`
}

func (s *Server) triggerDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	payload := jobs.Payload{Domain: req.Domain}
	jobID, err := s.dispatcher.Enqueue(r.Context(), jobs.ClassDiscovery, jobs.DiscoveryIdentity(req.Domain), payload)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

type feedPollRequest struct {
	FeedID string `json:"feed_id,omitempty"`
}

func (s *Server) triggerFeedPoll(w http.ResponseWriter, r *http.Request) {
	var req feedPollRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	payload := jobs.Payload{FeedID: req.FeedID}
	jobID, err := s.dispatcher.Enqueue(r.Context(), jobs.ClassFeedPoll, jobs.FeedPollIdentity(req.FeedID), payload)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
