package search

import (
	"context"
	"time"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/rank"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/tracing"
)

// Request is one search call after parameter validation.
type Request struct {
	Query    string
	K        int
	MinScore float64
	Gated    bool
}

// Response carries the ranked passages plus execution metadata.
type Response struct {
	Query     string        `json:"query"`
	K         int           `json:"k"`
	Returned  int           `json:"returned"`
	Results   []rank.Result `json:"results"`
	TookMicro int64         `json:"took_micro"`
}

// Service executes ranked queries against whatever model the holder currently
// serves.
type Service struct {
	holder *ModelHolder
}

func NewService(holder *ModelHolder) *Service {
	return &Service{holder: holder}
}

// Execute runs one query. Scoring is pure CPU work over the pinned model, so
// the only use of ctx is span bookkeeping.
func (s *Service) Execute(ctx context.Context, req Request) (*Response, error) {
	_, span := tracing.StartChildSpan(ctx, "search.execute")
	defer span.End()

	start := time.Now()
	m := s.holder.Current()

	var opts []rank.Option
	if req.Gated {
		opts = append(opts, rank.WithMinScore(req.MinScore))
	}
	results := rank.Search(m, req.Query, req.K, opts...)

	span.SetAttr("documents", m.Stats.DocCount)
	span.SetAttr("returned", len(results))

	return &Response{
		Query:     req.Query,
		K:         req.K,
		Returned:  len(results),
		Results:   results,
		TookMicro: time.Since(start).Microseconds(),
	}, nil
}
