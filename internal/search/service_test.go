package search

import (
	"context"
	"testing"
)

func newTestService(t *testing.T) (*Service, *ModelHolder) {
	t.Helper()
	h := NewModelHolder(t.TempDir())
	h.current.Store(buildTestModel(t))
	return NewService(h), h
}

func TestServiceExecuteRanks(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Execute(context.Background(), Request{Query: "aspirin polyp", K: 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Returned != 3 {
		t.Fatalf("Returned = %d, want 3", resp.Returned)
	}
	if resp.Results[0].SourceID != "src-a" {
		t.Errorf("top result source = %q, want src-a", resp.Results[0].SourceID)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("results not sorted at %d: %f > %f", i, resp.Results[i].Score, resp.Results[i-1].Score)
		}
	}
}

func TestServiceExecuteTruncatesToK(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Execute(context.Background(), Request{Query: "aspirin", K: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Returned != 1 || len(resp.Results) != 1 {
		t.Errorf("Returned = %d len = %d, want 1", resp.Returned, len(resp.Results))
	}
}

func TestServiceExecuteMinScoreGate(t *testing.T) {
	svc, _ := newTestService(t)

	// The placebo passage never mentions aspirin, so gating above zero drops it.
	resp, err := svc.Execute(context.Background(), Request{
		Query: "aspirin", K: 10, MinScore: 0.0001, Gated: true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, r := range resp.Results {
		if r.Score < 0.0001 {
			t.Errorf("result %q scored %f, below the gate", r.SourceID, r.Score)
		}
	}
	ungated, _ := svc.Execute(context.Background(), Request{Query: "aspirin", K: 10})
	if ungated.Returned <= resp.Returned {
		t.Errorf("ungated search should keep zero-score docs: gated=%d ungated=%d",
			resp.Returned, ungated.Returned)
	}
}

func TestServiceExecuteEmptyModel(t *testing.T) {
	svc := NewService(NewModelHolder(t.TempDir()))

	resp, err := svc.Execute(context.Background(), Request{Query: "anything", K: 5})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Returned != 0 || len(resp.Results) != 0 {
		t.Errorf("empty model should return no results, got %d", resp.Returned)
	}
	if resp.Results == nil {
		t.Error("Results should be an empty slice, not nil")
	}
}
