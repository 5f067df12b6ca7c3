// Package publisher persists passages to PostgreSQL and publishes corpus
// change events to Kafka for the rebuild worker. Writes go through the store
// first: an event without durable passages would trigger a rebuild of stale
// data, while durable passages without an event are picked up by the next
// rebuild.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest"
	"github.com/arvind-menon/passage-retrieval-platform/internal/store"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
)

// Publisher coordinates passage persistence and Kafka event production.
type Publisher struct {
	store    *store.PassageStore
	producer *kafka.Producer
	logger   *slog.Logger
}

// New creates a Publisher with the given store and Kafka producer.
func New(st *store.PassageStore, producer *kafka.Producer) *Publisher {
	return &Publisher{
		store:    st,
		producer: producer,
		logger:   slog.Default().With("component", "ingest-publisher"),
	}
}

// ReplaceSource stores the complete passage list for a source and publishes
// a CorpusChanged event.
func (p *Publisher) ReplaceSource(ctx context.Context, req *ingest.ReplaceSourceRequest) (*ingest.ReplaceSourceResponse, error) {
	passages := make([]model.Passage, 0, len(req.Passages))
	for _, in := range req.Passages {
		passages = append(passages, model.Passage{
			ID:       in.ID,
			SourceID: req.SourceID,
			Text:     in.Text,
		})
	}

	if err := p.store.ReplaceSource(ctx, req.SourceID, passages); err != nil {
		return nil, fmt.Errorf("storing passages for %s: %w", req.SourceID, err)
	}

	p.publishChange(ctx, req.SourceID, ingest.ActionReplace)

	return &ingest.ReplaceSourceResponse{
		SourceID:     req.SourceID,
		PassageCount: len(passages),
		Status:       "ACCEPTED",
	}, nil
}

// DeleteSource removes a source's passages and publishes a CorpusChanged
// event.
func (p *Publisher) DeleteSource(ctx context.Context, sourceID string) error {
	if err := p.store.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	p.publishChange(ctx, sourceID, ingest.ActionDelete)
	return nil
}

// publishChange emits the rebuild trigger. Publish failures are logged, not
// surfaced: the passages are already durable, and the next successful event
// rebuilds from the same full corpus.
func (p *Publisher) publishChange(ctx context.Context, sourceID, action string) {
	event := kafka.Event{
		Key: sourceID,
		Value: ingest.CorpusChangedEvent{
			SourceID:  sourceID,
			Action:    action,
			ChangedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish corpus change, rebuild delayed until next event",
			"source_id", sourceID,
			"action", action,
			"error", err,
		)
	}
}
