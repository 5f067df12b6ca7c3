package builder

import (
	"math"
	"reflect"
	"testing"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
)

func TestBuildEmptyCorpus(t *testing.T) {
	m := Build(nil)
	if m.Stats.DocCount != 0 {
		t.Errorf("DocCount = %d, want 0", m.Stats.DocCount)
	}
	if m.Stats.AvgDocLength != 0 {
		t.Errorf("AvgDocLength = %v, want 0", m.Stats.AvgDocLength)
	}
	if len(m.Stats.DocFreq) != 0 {
		t.Errorf("DocFreq has %d entries, want 0", len(m.Stats.DocFreq))
	}
	if len(m.Documents) != 0 {
		t.Errorf("Documents has %d entries, want 0", len(m.Documents))
	}
}

func TestBuildTermFrequencyAndLength(t *testing.T) {
	m := Build([]model.Passage{
		{ID: "p1", SourceID: "doc-a", Text: "polyp polyp recurrence"},
	})
	doc := m.Documents[0]
	if doc.Length != 3 {
		t.Errorf("Length = %d, want 3", doc.Length)
	}
	if doc.TermFreq["polyp"] != 2 {
		t.Errorf("TermFreq[polyp] = %d, want 2", doc.TermFreq["polyp"])
	}
	if doc.TermFreq["recurrence"] != 1 {
		t.Errorf("TermFreq[recurrence] = %d, want 1", doc.TermFreq["recurrence"])
	}
}

func TestBuildDocFreqCountsDocumentsNotOccurrences(t *testing.T) {
	m := Build([]model.Passage{
		{ID: "p1", SourceID: "a", Text: "aspirin aspirin aspirin"},
		{ID: "p2", SourceID: "b", Text: "aspirin reduces recurrence"},
		{ID: "p3", SourceID: "c", Text: "surveillance interval"},
	})
	if got := m.Stats.DocFreq["aspirin"]; got != 2 {
		t.Errorf("DocFreq[aspirin] = %d, want 2", got)
	}
	if got := m.Stats.DocFreq["surveillance"]; got != 1 {
		t.Errorf("DocFreq[surveillance] = %d, want 1", got)
	}
	if got := m.Stats.DocFreq["absent"]; got != 0 {
		t.Errorf("DocFreq[absent] = %d, want 0", got)
	}
}

func TestBuildAvgDocLength(t *testing.T) {
	m := Build([]model.Passage{
		{ID: "p1", SourceID: "a", Text: "one two three"},
		{ID: "p2", SourceID: "b", Text: "one two three four five"},
	})
	want := 4.0
	if math.Abs(m.Stats.AvgDocLength-want) > 1e-12 {
		t.Errorf("AvgDocLength = %v, want %v", m.Stats.AvgDocLength, want)
	}
	if m.Stats.DocCount != 2 {
		t.Errorf("DocCount = %d, want 2", m.Stats.DocCount)
	}
}

func TestBuildDeterministic(t *testing.T) {
	passages := []model.Passage{
		{ID: "p1", SourceID: "a", Text: "aspirin reduces polyp recurrence"},
		{ID: "p2", SourceID: "b", Text: "colonoscopy surveillance interval five years"},
		{ID: "p3", SourceID: "c", Text: "大腸息肉 follow up guidance"},
	}
	first := Build(passages)
	second := Build(passages)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two builds from identical input produced different models")
	}
}

func TestBuildPreservesPassageOrder(t *testing.T) {
	passages := []model.Passage{
		{ID: "p3", SourceID: "c", Text: "third"},
		{ID: "p1", SourceID: "a", Text: "first"},
		{ID: "p2", SourceID: "b", Text: "second"},
	}
	m := Build(passages)
	for i, p := range passages {
		if m.Documents[i].ID != p.ID {
			t.Errorf("Documents[%d].ID = %q, want %q", i, m.Documents[i].ID, p.ID)
		}
	}
}

func TestBuildPassageWithNoTokens(t *testing.T) {
	m := Build([]model.Passage{
		{ID: "p1", SourceID: "a", Text: "!!! ---"},
	})
	if m.Stats.DocCount != 1 {
		t.Errorf("DocCount = %d, want 1", m.Stats.DocCount)
	}
	if m.Documents[0].Length != 0 {
		t.Errorf("Length = %d, want 0", m.Documents[0].Length)
	}
	if m.Stats.AvgDocLength != 0 {
		t.Errorf("AvgDocLength = %v, want 0", m.Stats.AvgDocLength)
	}
}
