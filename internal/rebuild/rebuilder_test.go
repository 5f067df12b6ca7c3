package rebuild

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/rank"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/metrics"
)

type fakeSource struct {
	mu       sync.Mutex
	passages []model.Passage
	calls    int
	err      error
}

func (f *fakeSource) ListAll(ctx context.Context) ([]model.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testIndexConfig(t *testing.T) config.IndexConfig {
	return config.IndexConfig{
		SnapshotDir:     t.TempDir(),
		RebuildDebounce: 0,
		RebuildTimeout:  time.Minute,
		KeepSnapshots:   2,
	}
}

func TestRebuildOnceWritesSnapshot(t *testing.T) {
	source := &fakeSource{passages: []model.Passage{
		{ID: "p1", SourceID: "a", Text: "aspirin reduces polyp recurrence"},
		{ID: "p2", SourceID: "b", Text: "colonoscopy surveillance interval"},
	}}
	completes := &fakePublisher{}
	invalidate := &fakePublisher{}
	cfg := testIndexConfig(t)

	r := New(source, completes, invalidate, cfg, nil)
	if err := r.RebuildOnce(context.Background()); err != nil {
		t.Fatalf("RebuildOnce failed: %v", err)
	}

	path, err := snapshot.Latest(cfg.SnapshotDir)
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("no snapshot written")
	}
	m, err := snapshot.Read(path)
	if err != nil {
		t.Fatalf("reading written snapshot: %v", err)
	}
	if m.Stats.DocCount != 2 {
		t.Errorf("DocCount = %d, want 2", m.Stats.DocCount)
	}
	if completes.count() != 1 {
		t.Errorf("index-complete events = %d, want 1", completes.count())
	}
	if invalidate.count() != 1 {
		t.Errorf("cache-invalidate events = %d, want 1", invalidate.count())
	}
}

// testMetrics builds an unregistered Metrics with the collectors RebuildOnce
// touches, so tests stay off the default prometheus registry.
func testMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_rebuilds_total"}, []string{"status"}),
		RebuildDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_rebuild_duration"}),
		ModelDocuments:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_model_documents"}),
		CorpusPassages:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_corpus_passages"}),
		SnapshotSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_snapshot_size_bytes"}),
	}
}

func TestRebuildOnceRecordsSnapshotSize(t *testing.T) {
	source := &fakeSource{passages: []model.Passage{
		{ID: "p1", SourceID: "a", Text: "aspirin reduces polyp recurrence"},
	}}
	cfg := testIndexConfig(t)
	m := testMetrics()

	r := New(source, nil, nil, cfg, m)
	if err := r.RebuildOnce(context.Background()); err != nil {
		t.Fatalf("RebuildOnce failed: %v", err)
	}

	path, err := snapshot.Latest(cfg.SnapshotDir)
	if err != nil || path == "" {
		t.Fatalf("no snapshot written: path=%q err=%v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	got := testutil.ToFloat64(m.SnapshotSizeBytes)
	if got != float64(info.Size()) {
		t.Errorf("SnapshotSizeBytes = %v, want %d", got, info.Size())
	}
	if got == 0 {
		t.Error("SnapshotSizeBytes never set")
	}
	if docs := testutil.ToFloat64(m.ModelDocuments); docs != 1 {
		t.Errorf("ModelDocuments = %v, want 1", docs)
	}
}

func TestRebuildAfterSourceRemovalExcludesSource(t *testing.T) {
	source := &fakeSource{passages: []model.Passage{
		{ID: "p1", SourceID: "src-a", Text: "aspirin reduces polyp recurrence"},
		{ID: "p2", SourceID: "src-b", Text: "aspirin dosage for cardiovascular prevention"},
	}}
	cfg := testIndexConfig(t)
	r := New(source, nil, nil, cfg, nil)

	if err := r.RebuildOnce(context.Background()); err != nil {
		t.Fatalf("initial rebuild failed: %v", err)
	}

	// Drop src-a from the corpus and rebuild, as a source delete would.
	source.mu.Lock()
	source.passages = source.passages[1:]
	source.mu.Unlock()
	if err := r.RebuildOnce(context.Background()); err != nil {
		t.Fatalf("rebuild after removal failed: %v", err)
	}

	path, err := snapshot.Latest(cfg.SnapshotDir)
	if err != nil || path == "" {
		t.Fatalf("no snapshot after removal: path=%q err=%v", path, err)
	}
	m, err := snapshot.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	results := rank.Search(m, "aspirin polyp recurrence", 10)
	if len(results) == 0 {
		t.Fatal("expected results from the remaining source")
	}
	for _, res := range results {
		if res.SourceID == "src-a" {
			t.Errorf("removed source still ranked: %+v", res)
		}
	}
}

func TestRebuildOnceEmptyCorpus(t *testing.T) {
	cfg := testIndexConfig(t)
	r := New(&fakeSource{}, nil, nil, cfg, nil)
	if err := r.RebuildOnce(context.Background()); err != nil {
		t.Fatalf("RebuildOnce failed: %v", err)
	}
	path, err := snapshot.Latest(cfg.SnapshotDir)
	if err != nil || path == "" {
		t.Fatalf("expected snapshot for empty corpus, path=%q err=%v", path, err)
	}
	m, err := snapshot.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsEmpty() {
		t.Error("expected empty model")
	}
}

func TestRebuildOnceSourceError(t *testing.T) {
	cfg := testIndexConfig(t)
	r := New(&fakeSource{err: errors.New("store down")}, nil, nil, cfg, nil)
	if err := r.RebuildOnce(context.Background()); err == nil {
		t.Fatal("expected error when source is unavailable")
	}
	path, err := snapshot.Latest(cfg.SnapshotDir)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Error("no snapshot should be written on failure")
	}
}

func TestRunCoalescesTriggers(t *testing.T) {
	source := &fakeSource{passages: []model.Passage{
		{ID: "p1", SourceID: "a", Text: "one"},
	}}
	cfg := testIndexConfig(t)
	cfg.RebuildDebounce = 50 * time.Millisecond

	r := New(source, nil, nil, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		r.Trigger()
	}
	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	source.mu.Lock()
	calls := source.calls
	source.mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 coalesced rebuild, got %d", calls)
	}
}

func TestHandleCorpusChangedTriggersRebuild(t *testing.T) {
	r := New(&fakeSource{}, nil, nil, testIndexConfig(t), nil)
	handler := r.HandleCorpusChanged()

	value := []byte(`{"source_id":"a","action":"replace","changed_at":"2026-01-01T00:00:00Z"}`)
	if err := handler(context.Background(), []byte("a"), value); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	select {
	case <-r.trigger:
	default:
		t.Error("expected a pending trigger")
	}
}

func TestHandleCorpusChangedDropsMalformed(t *testing.T) {
	r := New(&fakeSource{}, nil, nil, testIndexConfig(t), nil)
	handler := r.HandleCorpusChanged()
	if err := handler(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("malformed events must be dropped without error, got %v", err)
	}
}
