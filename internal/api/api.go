// Package api exposes the classification pipeline over HTTP: synchronous
// URL parsing and normalization, asynchronous artist resolution jobs, tag
// lookups, and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayane-dev/musubi/internal/config"
	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/graph"
	"github.com/ayane-dev/musubi/internal/identity"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/metrics"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/storage"
	"github.com/ayane-dev/musubi/internal/tagdb"
)

// JobStorage is the persistence surface for async resolve jobs.
type JobStorage interface {
	SaveJob(ctx context.Context, job *storage.ResolveJob) error
	GetJob(ctx context.Context, id string) (*storage.ResolveJob, error)
	UpdateJob(ctx context.Context, job *storage.ResolveJob) error
	Close() error
}

// APIHandler handles HTTP API requests
type APIHandler struct {
	resolver *sources.Resolver
	walker   *graph.Walker
	identity *identity.Resolver
	jobs     JobStorage
	tags     tagdb.Store
	config   *config.Config
	metrics  *metrics.PrometheusMetrics
	logger   logger.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(resolver *sources.Resolver, walker *graph.Walker, ident *identity.Resolver,
	jobs JobStorage, tags tagdb.Store, cfg *config.Config, m *metrics.PrometheusMetrics,
	log logger.Logger) *APIHandler {
	return &APIHandler{
		resolver: resolver,
		walker:   walker,
		identity: ident,
		jobs:     jobs,
		tags:     tags,
		config:   cfg,
		metrics:  m,
		logger:   log,
	}
}

// RegisterRoutes attaches all handlers to the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/parse", h.timed("/api/parse", h.HandleParse))
	mux.HandleFunc("/api/artist/resolve", h.timed("/api/artist/resolve", h.HandleResolveArtist))
	mux.HandleFunc("/api/artist/job", h.timed("/api/artist/job", h.HandleJobStatus))
	mux.HandleFunc("/api/tags", h.timed("/api/tags", h.HandleGetTag))
	mux.HandleFunc("/api/tags/by-url", h.timed("/api/tags/by-url", h.HandleFindTagsByURL))
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/metrics", h.HandleMetrics)
}

func (h *APIHandler) timed(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint, sw.status, time.Since(start))
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// authorized checks the bearer token when one is configured.
func (h *APIHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.config.APIToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != h.config.APIToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// ParseRequest represents a batch classification request
type ParseRequest struct {
	URLs []string `json:"urls"`
}

// ParseResult is the classification of one URL. Outcome is one of ok,
// unknown_domain, unsupported_shape, or error.
type ParseResult struct {
	URL        string `json:"url"`
	Outcome    string `json:"outcome"`
	Site       string `json:"site,omitempty"`
	Type       string `json:"type,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HandleParse classifies a batch of URLs synchronously. One bad URL does
// not fail the batch; its result carries the error instead.
func (h *APIHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		http.Error(w, "No URLs provided", http.StatusBadRequest)
		return
	}

	results := make([]ParseResult, 0, len(req.URLs))
	for _, raw := range req.URLs {
		results = append(results, h.classify(raw))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"results": results}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *APIHandler) classify(raw string) ParseResult {
	res := ParseResult{URL: raw}

	src, err := h.resolver.Parse(raw)
	switch {
	case err == nil:
		res.Site = src.Site()
		res.Normalized = src.String()
		res.Type = sourceTypeName(src)
		if _, unknown := src.(*sources.UnknownSource); unknown {
			res.Outcome = "unknown_domain"
		} else {
			res.Outcome = "ok"
		}
	case errors.Is(err, errors.ErrUnsupportedShape):
		res.Outcome = "unsupported_shape"
		res.Error = err.Error()
	default:
		res.Outcome = "error"
		res.Error = err.Error()
	}
	return res
}

func sourceTypeName(src sources.Source) string {
	name := fmt.Sprintf("%T", src)
	if len(name) > 0 && name[0] == '*' {
		name = name[1:]
	}
	const pkg = "sources."
	if len(name) > len(pkg) && name[:len(pkg)] == pkg {
		name = name[len(pkg):]
	}
	return name
}

// ResolveRequest represents an artist resolution request
type ResolveRequest struct {
	URL string `json:"url"`
}

// ResolveResponse acknowledges an accepted resolution job
type ResolveResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// HandleResolveArtist starts an asynchronous artist resolution: the seed
// URL's related graph is walked and mapped onto a tag in the background.
func (h *APIHandler) HandleResolveArtist(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "No URL provided", http.StatusBadRequest)
		return
	}

	job := &storage.ResolveJob{
		ID:        uuid.New().String(),
		Status:    storage.JobPending,
		SeedURL:   req.URL,
		CreatedAt: time.Now(),
	}
	if err := h.jobs.SaveJob(r.Context(), job); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save job: %v", err), http.StatusInternalServerError)
		return
	}

	go h.executeResolveJob(job)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(ResolveResponse{JobID: job.ID, Status: "accepted"}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// executeResolveJob runs one resolution in the background.
func (h *APIHandler) executeResolveJob(job *storage.ResolveJob) {
	ctx := context.Background()

	job.Status = storage.JobRunning
	now := time.Now()
	job.StartedAt = &now
	if err := h.jobs.UpdateJob(ctx, job); err != nil {
		h.logger.Warn("Failed to mark job %s running: %v", job.ID, err)
	}

	fail := func(err error) {
		job.Status = storage.JobFailed
		job.Error = err.Error()
		done := time.Now()
		job.CompletedAt = &done
		if err := h.jobs.UpdateJob(ctx, job); err != nil {
			h.logger.Error("Failed to record failure for job %s: %v", job.ID, err)
		}
	}

	seed, err := h.resolver.Parse(job.SeedURL)
	if err != nil {
		fail(fmt.Errorf("seed url did not parse: %w", err))
		return
	}

	nodes, err := h.walker.Walk(ctx, seed)
	if err != nil {
		fail(fmt.Errorf("graph walk failed: %w", err))
		return
	}
	job.WalkedURLs = make([]string, len(nodes))
	for i, n := range nodes {
		job.WalkedURLs[i] = n.String()
	}
	if err := h.jobs.UpdateJob(ctx, job); err != nil {
		h.logger.Warn("Failed to record walk result for job %s: %v", job.ID, err)
	}

	tag, created, err := h.identity.Resolve(ctx, nodes)
	if err != nil {
		fail(fmt.Errorf("identity resolution failed: %w", err))
		return
	}

	job.Status = storage.JobCompleted
	job.Tag = tag
	job.TagCreated = created
	done := time.Now()
	job.CompletedAt = &done
	if err := h.jobs.UpdateJob(ctx, job); err != nil {
		h.logger.Error("Failed to record completion for job %s: %v", job.ID, err)
		return
	}
	h.logger.Info("Job %s resolved %s to tag %s (created=%v, %d nodes)",
		job.ID, job.SeedURL, tag.Name, created, len(nodes))
}

// HandleJobStatus handles job status requests
func (h *APIHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load job: %v", err), http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(job); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandleHealth handles health check requests
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandleMetrics serves the prometheus registry.
func (h *APIHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(h.metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
