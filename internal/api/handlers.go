package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/importlab/marketplace-scraper/internal/config"
	"github.com/importlab/marketplace-scraper/internal/models"
	"github.com/importlab/marketplace-scraper/internal/pipeline"
)

// Runner executes one scrape batch. Implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, urls []string) (*models.BatchResult, error)
}

// RunnerFunc adapts a function to Runner. The server wires closures through
// this so per-run state, like the in-memory image hash set, is created fresh
// for every batch instead of leaking across requests.
type RunnerFunc func(ctx context.Context, urls []string) (*models.BatchResult, error)

func (f RunnerFunc) Run(ctx context.Context, urls []string) (*models.BatchResult, error) {
	return f(ctx, urls)
}

// RecordStore persists finished batches. Optional.
type RecordStore interface {
	SaveBatch(ctx context.Context, records []models.ProductRecord) error
	RecentRecords(ctx context.Context, limit int) ([]models.ProductRecord, error)
}

// Handlers serves the scrape API. One Runner per image mode: the mode decides
// what the Images column carries, so it has to be fixed before the run starts.
type Handlers struct {
	runners     map[config.ImageMode]Runner
	defaultMode config.ImageMode
	store       RecordStore
	logger      *slog.Logger
}

func NewHandlers(runners map[config.ImageMode]Runner, defaultMode config.ImageMode, store RecordStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		runners:     runners,
		defaultMode: defaultMode,
		store:       store,
		logger:      logger.With("component", "api"),
	}
}

type ScrapeRequest struct {
	URLs      []string `json:"urls"`
	ImageMode string   `json:"image_mode,omitempty"`
}

type ScrapeResponse struct {
	Processed int                    `json:"processed"`
	Failed    int                    `json:"failed"`
	Records   []models.ProductRecord `json:"records"`
	Error     string                 `json:"error,omitempty"`
}

// Scrape runs a batch synchronously and returns the assembled records. URLs
// that fail are reported in the counts, never as an HTTP error.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}

	mode := h.defaultMode
	if req.ImageMode != "" {
		mode = config.ImageMode(req.ImageMode)
	}
	runner, ok := h.runners[mode]
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown image_mode "+string(mode))
		return
	}

	result, err := runner.Run(r.Context(), req.URLs)
	if result == nil {
		result = &models.BatchResult{}
	}
	resp := ScrapeResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
		Records:   result.Records,
	}
	if err != nil {
		if !errors.Is(err, pipeline.ErrNoRecords) {
			h.logger.Error("batch run failed", "error", err)
			h.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Error = err.Error()
	}

	if h.store != nil && len(result.Records) > 0 {
		if err := h.store.SaveBatch(r.Context(), result.Records); err != nil {
			h.logger.Error("failed to persist batch", "error", err)
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Records returns the most recently persisted records, newest first.
func (h *Handlers) Records(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.RecentRecords(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list records", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
