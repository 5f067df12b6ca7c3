// Package model defines the typed index structures shared between the corpus
// statistics builder and the ranking engine. A Model is an immutable snapshot:
// it is produced whole by a single build, persisted and exchanged as one unit,
// and never mutated afterward. Corpus changes always produce a new Model.
package model

// SchemaVersion identifies the serialised shape of Model. Bump it whenever a
// field changes meaning, so the snapshot reader can reject stale files.
const SchemaVersion = 1

// Passage is the unit of input handed to the builder: one extracted text
// fragment belonging to a source document. Passages are owned by the
// ingestion pipeline and are immutable once handed over.
type Passage struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

// Document is the indexed form of a Passage: its per-term occurrence counts
// and its token length, plus the original text so search results can be
// returned without a second store lookup.
type Document struct {
	ID       string         `json:"id"`
	SourceID string         `json:"source_id"`
	Text     string         `json:"text"`
	TermFreq map[string]int `json:"term_freq"`
	Length   int            `json:"length"`
}

// CorpusStats holds the corpus-wide statistics needed by BM25 scoring.
//
// Invariants maintained by the builder:
//   - AvgDocLength == sum of all Document.Length / DocCount (0 when empty)
//   - DocFreq[t] == number of Documents whose TermFreq contains t with a
//     positive count, for every term t present in any Document
type CorpusStats struct {
	DocFreq      map[string]int `json:"doc_freq"`
	DocCount     int            `json:"doc_count"`
	AvgDocLength float64        `json:"avg_doc_length"`
}

// Model is the complete derived index: every indexed document plus the corpus
// statistics. It contains everything the ranking engine needs, so scoring
// never re-tokenises the corpus.
type Model struct {
	Version   int         `json:"version"`
	Documents []Document  `json:"documents"`
	Stats     CorpusStats `json:"stats"`
}

// Empty returns a valid zero-document Model. Used as the fallback when no
// snapshot exists yet or a persisted one is unreadable.
func Empty() *Model {
	return &Model{
		Version: SchemaVersion,
		Stats: CorpusStats{
			DocFreq: make(map[string]int),
		},
	}
}

// IsEmpty reports whether the model contains no documents.
func (m *Model) IsEmpty() bool {
	return m == nil || m.Stats.DocCount == 0
}
