package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	svc, holder := newTestService(t)
	return NewHandler(svc, holder, nil, nil, nil, config.SearchConfig{DefaultK: 10, MaxK: 25})
}

func doSearch(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func TestSearchRequiresQuery(t *testing.T) {
	rec := doSearch(t, newTestHandler(t), "/api/v1/search")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchRejectsBadParams(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name   string
		target string
	}{
		{"k not a number", "/api/v1/search?q=aspirin&k=abc"},
		{"k zero", "/api/v1/search?q=aspirin&k=0"},
		{"k negative", "/api/v1/search?q=aspirin&k=-3"},
		{"min_score not a number", "/api/v1/search?q=aspirin&min_score=high"},
		{"min_score negative", "/api/v1/search?q=aspirin&min_score=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := doSearch(t, h, tc.target); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSearchReturnsRankedResults(t *testing.T) {
	rec := doSearch(t, newTestHandler(t), "/api/v1/search?q=aspirin+polyp")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Returned != 3 {
		t.Errorf("Returned = %d, want 3", resp.Returned)
	}
	if resp.Results[0].SourceID != "src-a" {
		t.Errorf("top result source = %q, want src-a", resp.Results[0].SourceID)
	}
	if resp.Results[0].Text == "" {
		t.Error("results should carry passage text")
	}
}

func TestSearchCapsKAtMax(t *testing.T) {
	rec := doSearch(t, newTestHandler(t), "/api/v1/search?q=aspirin&k=9999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.K != 25 {
		t.Errorf("K = %d, want capped to 25", resp.K)
	}
}

func TestSearchMinScoreFilters(t *testing.T) {
	rec := doSearch(t, newTestHandler(t), "/api/v1/search?q=aspirin&min_score=0.0001")
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Returned != 2 {
		t.Errorf("Returned = %d, want 2 (placebo passage gated out)", resp.Returned)
	}
}

func TestSearchUnknownTermsOK(t *testing.T) {
	rec := doSearch(t, newTestHandler(t), "/api/v1/search?q=zyzzyva&min_score=0.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Returned != 0 {
		t.Errorf("Returned = %d, want 0", resp.Returned)
	}
}

func TestModelStats(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/model", nil)
	rec := httptest.NewRecorder()
	h.ModelStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats["documents"].(float64) != 3 {
		t.Errorf("documents = %v, want 3", stats["documents"])
	}
}
