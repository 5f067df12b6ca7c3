package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/builder"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
)

func buildTestModel(t *testing.T) *model.Model {
	t.Helper()
	return builder.Build([]model.Passage{
		{ID: "p1", SourceID: "src-a", Text: "aspirin reduces colorectal polyp recurrence"},
		{ID: "p2", SourceID: "src-a", Text: "daily low dose aspirin was well tolerated"},
		{ID: "p3", SourceID: "src-b", Text: "the placebo group reported more polyps"},
	})
}

func TestModelHolderStartsEmpty(t *testing.T) {
	h := NewModelHolder(t.TempDir())
	m := h.Current()
	if !m.IsEmpty() {
		t.Fatalf("new holder should serve the empty model, got %d docs", m.Stats.DocCount)
	}
}

func TestModelHolderReloadNoSnapshot(t *testing.T) {
	h := NewModelHolder(t.TempDir())
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload with no snapshot: %v", err)
	}
	if !h.Current().IsEmpty() {
		t.Error("model should stay empty when no snapshot exists")
	}
}

func TestModelHolderReloadLoadsNewest(t *testing.T) {
	dir := t.TempDir()
	m := buildTestModel(t)
	if _, err := snapshot.Write(dir, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h := NewModelHolder(dir)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got := h.Current()
	if got.Stats.DocCount != 3 {
		t.Errorf("DocCount = %d, want 3", got.Stats.DocCount)
	}
	if got.Stats.DocFreq["aspirin"] != 2 {
		t.Errorf("DocFreq[aspirin] = %d, want 2", got.Stats.DocFreq["aspirin"])
	}
}

func TestModelHolderReloadMissingDir(t *testing.T) {
	h := NewModelHolder(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload with missing dir should be a no-op, got %v", err)
	}
}

func TestHandleIndexCompleteReloads(t *testing.T) {
	dir := t.TempDir()
	h := NewModelHolder(dir)
	handler := h.HandleIndexComplete()

	if _, err := snapshot.Write(dir, buildTestModel(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := handler(context.Background(), nil, []byte(`{}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if h.Current().Stats.DocCount != 3 {
		t.Errorf("model not swapped after index-complete event")
	}
}
