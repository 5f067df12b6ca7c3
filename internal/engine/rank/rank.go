// Package rank scores an index Model against a free-text query using Okapi
// BM25 and returns the top-k passages. Search is a pure function of the Model
// snapshot it is given: it performs no mutation and no I/O, so it is safe for
// any number of concurrent callers sharing one immutable Model.
package rank

import (
	"math"
	"sort"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/tokenizer"
)

// BM25 parameters. Fixed rather than configurable: every persisted score and
// every cached result assumes these values.
const (
	k1 = 1.5
	b  = 0.75
)

// Result is one ranked passage.
type Result struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// Option adjusts search behaviour on behalf of the caller.
type Option func(*options)

type options struct {
	minScore float64
	gated    bool
}

// WithMinScore drops results scoring below s. Gating is always the caller's
// decision; without this option every document is a candidate, including
// zero-score ones.
func WithMinScore(s float64) Option {
	return func(o *options) {
		o.minScore = s
		o.gated = true
	}
}

// Search scores every document in m against query and returns at most k
// results ordered by non-increasing score. Among equal scores the original
// corpus order is preserved. An empty model, an empty query term set after
// tokenisation, k <= 0, and query terms absent from the corpus are all
// degenerate but valid inputs, never errors.
func Search(m *model.Model, query string, k int, opts ...Option) []Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if m.IsEmpty() || k <= 0 {
		return []Result{}
	}

	// Deduplicate query terms: a term repeated in the query contributes at
	// most once per scored document.
	terms := make([]string, 0, 8)
	seen := make(map[string]struct{})
	for _, t := range tokenizer.Tokenize(query) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	n := float64(m.Stats.DocCount)
	avgdl := m.Stats.AvgDocLength
	if avgdl == 0 {
		// Degenerate corpus where every document tokenised to nothing.
		avgdl = 1
	}

	results := make([]Result, 0, len(m.Documents))
	for _, doc := range m.Documents {
		score := 0.0
		for _, t := range terms {
			nt := m.Stats.DocFreq[t]
			if nt == 0 {
				// Term never seen in the corpus: contributes nothing to any
				// document, so skip it outright.
				continue
			}
			ft := doc.TermFreq[t]
			if ft == 0 {
				continue
			}
			idf := math.Log((n-float64(nt)+0.5)/(float64(nt)+0.5) + 1)
			f := float64(ft)
			tfWeight := f * (k1 + 1) / (f + k1*(1-b+b*float64(doc.Length)/avgdl))
			score += idf * tfWeight
		}
		if o.gated && score < o.minScore {
			continue
		}
		results = append(results, Result{
			SourceID: doc.SourceID,
			Text:     doc.Text,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
