package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func searchEvent(query string, returned int, topScore float64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      EventSearch,
		Query:     query,
		K:         10,
		Returned:  returned,
		TopScore:  topScore,
		LatencyMs: 5,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
}

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordSearch(searchEvent("aspirin polyp", 3, 1.2, false))
	agg.RecordSearch(searchEvent("aspirin polyp", 3, 1.2, true))
	agg.RecordSearch(searchEvent("unknown terms", 0, 0, false))

	stats := agg.Stats()
	if stats.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", stats.TotalSearches)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
}

func TestAggregatorTopQueries(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < 5; i++ {
		agg.RecordSearch(searchEvent("popular", 1, 0.5, false))
	}
	agg.RecordSearch(searchEvent("rare", 1, 0.5, false))

	stats := agg.Stats()
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "popular" {
		t.Errorf("TopQueries = %v, want popular first", stats.TopQueries)
	}
	if stats.TopQueries[0].Count != 5 {
		t.Errorf("top count = %d, want 5", stats.TopQueries[0].Count)
	}
}

func TestAggregatorZeroScoreCountsAsZeroResult(t *testing.T) {
	agg := NewAggregator(nil)
	// Documents came back but none matched: top score 0.
	agg.RecordSearch(searchEvent("no matches", 10, 0, false))
	stats := agg.Stats()
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
}

func TestAggregatorRebuildEvents(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordRebuild(RebuildEvent{Type: EventRebuild, DocCount: 42, LatencyMs: 100})
	agg.RecordRebuild(RebuildEvent{Type: EventRebuild, DocCount: 40, LatencyMs: 90})

	stats := agg.Stats()
	if stats.TotalRebuilds != 2 {
		t.Errorf("TotalRebuilds = %d, want 2", stats.TotalRebuilds)
	}
	if stats.IndexedDocuments != 40 {
		t.Errorf("IndexedDocuments = %d, want latest count 40", stats.IndexedDocuments)
	}
}

func TestHandleEventDispatch(t *testing.T) {
	agg := NewAggregator(nil)
	handler := HandleEvent(agg)

	search, _ := json.Marshal(searchEvent("q", 1, 0.7, false))
	rebuild, _ := json.Marshal(RebuildEvent{Type: EventRebuild, DocCount: 7})

	if err := handler(context.Background(), nil, search); err != nil {
		t.Fatalf("search event: %v", err)
	}
	if err := handler(context.Background(), nil, rebuild); err != nil {
		t.Fatalf("rebuild event: %v", err)
	}
	if err := handler(context.Background(), nil, []byte("garbage")); err != nil {
		t.Errorf("malformed events must not error, got %v", err)
	}

	stats := agg.Stats()
	if stats.TotalSearches != 1 || stats.TotalRebuilds != 1 {
		t.Errorf("searches/rebuilds = %d/%d, want 1/1",
			stats.TotalSearches, stats.TotalRebuilds)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 6 {
		t.Errorf("p50 = %d, want 6", got)
	}
	if got := percentile(sorted, 99); got != 10 {
		t.Errorf("p99 = %d, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty p50 = %d, want 0", got)
	}
}
