// Package builder turns a full passage list into an index Model. Builds are
// total: every invocation consumes the entire corpus and produces a complete
// replacement Model. There is no incremental path; additions and removals are
// implemented upstream as filter/append on the passage list followed by a
// rebuild, which keeps the statistics trivially consistent.
package builder

import (
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/tokenizer"
)

// Build tokenises every passage and derives per-document term frequencies,
// document lengths, corpus-wide document frequencies, and the mean document
// length. It is deterministic: the same passage slice always produces an
// identical Model, and document order follows passage order.
func Build(passages []model.Passage) *model.Model {
	m := &model.Model{
		Version:   model.SchemaVersion,
		Documents: make([]model.Document, 0, len(passages)),
		Stats: model.CorpusStats{
			DocFreq: make(map[string]int),
		},
	}

	totalLength := 0
	for _, p := range passages {
		terms := tokenizer.Tokenize(p.Text)
		doc := model.Document{
			ID:       p.ID,
			SourceID: p.SourceID,
			Text:     p.Text,
			TermFreq: make(map[string]int, len(terms)),
			Length:   len(terms),
		}
		for _, t := range terms {
			doc.TermFreq[t]++
		}
		// Each distinct term counts once per document, regardless of how
		// often it repeats inside the document.
		for t := range doc.TermFreq {
			m.Stats.DocFreq[t]++
		}
		totalLength += doc.Length
		m.Documents = append(m.Documents, doc)
	}

	m.Stats.DocCount = len(passages)
	if m.Stats.DocCount > 0 {
		m.Stats.AvgDocLength = float64(totalLength) / float64(m.Stats.DocCount)
	}
	return m
}
