package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest"
	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest/publisher"
	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest/validator"
	"github.com/arvind-menon/passage-retrieval-platform/internal/store"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	apperrors "github.com/arvind-menon/passage-retrieval-platform/pkg/errors"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/logger"
)

// Handler serves the ingestion HTTP API.
type Handler struct {
	publisher *publisher.Publisher
	sources   *store.PassageStore
	cfg       config.IngestConfig
	logger    *slog.Logger
}

// New creates a Handler.
func New(pub *publisher.Publisher, sources *store.PassageStore, cfg config.IngestConfig) *Handler {
	return &Handler{
		publisher: pub,
		sources:   sources,
		cfg:       cfg,
		logger:    slog.Default().With("component", "ingest-handler"),
	}
}

// ReplaceSource handles POST /api/v1/sources: it validates the payload,
// stores the full passage list for the source, and triggers a rebuild.
func (h *Handler) ReplaceSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingest.ReplaceSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateReplaceSource(&req, h.cfg); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.ReplaceSource(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("source ingestion failed",
			"source_id", req.SourceID,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("source ingested",
		"source_id", resp.SourceID,
		"passages", resp.PassageCount,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// DeleteSource handles DELETE /api/v1/sources/{id}.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	sourceID := r.PathValue("id")
	if sourceID == "" {
		h.writeError(w, http.StatusBadRequest, "source id is required")
		return
	}

	if err := h.publisher.DeleteSource(ctx, sourceID); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode != http.StatusNotFound {
			log.Error("source deletion failed",
				"source_id", sourceID,
				"error", err,
			)
		}
		h.writeError(w, statusCode, err.Error())
		return
	}
	log.Info("source deleted", "source_id", sourceID)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"source_id": sourceID,
		"status":    "DELETED",
	})
}

// ListSources handles GET /api/v1/sources.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListSources(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("listing sources failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing sources failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// Health handles the ingestion service's basic liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
