package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arvind-menon/passage-retrieval-platform/internal/analytics"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/logger"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/metrics"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/middleware"
)

// Handler serves the search API.
type Handler struct {
	service   *Service
	holder    *ModelHolder
	cache     *QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	defaultK  int
	maxK      int
	logger    *slog.Logger
}

func NewHandler(
	service *Service,
	holder *ModelHolder,
	cache *QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		service:   service,
		holder:    holder,
		cache:     cache,
		collector: collector,
		metrics:   m,
		defaultK:  cfg.DefaultK,
		maxK:      cfg.MaxK,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&k=...&min_score=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	req := Request{Query: query, K: h.defaultK}
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		if parsed > h.maxK {
			parsed = h.maxK
		}
		req.K = parsed
	}
	if msStr := r.URL.Query().Get("min_score"); msStr != "" {
		parsed, err := strconv.ParseFloat(msStr, 64)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "min_score must be a non-negative number")
			return
		}
		req.MinScore = parsed
		req.Gated = true
	}

	var resp *Response
	var err error
	cacheHit := false

	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*Response, error) {
			return h.service.Execute(ctx, req)
		})
	} else {
		resp, err = h.service.Execute(ctx, req)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latency := time.Since(start)
	h.observe(resp, cacheHit, latency)

	log.Info("search completed",
		"query", query,
		"k", req.K,
		"returned", resp.Returned,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.collector != nil {
		var topScore float64
		if len(resp.Results) > 0 {
			topScore = resp.Results[0].Score
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     query,
			K:         req.K,
			MinScore:  req.MinScore,
			Returned:  resp.Returned,
			TopScore:  topScore,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(resp *Response, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if resp.Returned == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(resp.Returned))
}

// ModelStats handles GET /api/v1/model and reports the active model.
func (h *Handler) ModelStats(w http.ResponseWriter, r *http.Request) {
	m := h.holder.Current()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"schema_version": m.Version,
		"documents":      m.Stats.DocCount,
		"terms":          len(m.Stats.DocFreq),
		"avg_doc_length": m.Stats.AvgDocLength,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

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
