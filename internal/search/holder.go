// Package search serves ranked-relevance queries over the current index
// model. The model is held behind an atomic pointer: rebuild announcements
// swap in a freshly loaded snapshot while in-flight queries keep scoring
// against the snapshot they started with.
package search

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
)

// ModelHolder owns the active index model.
type ModelHolder struct {
	current     atomic.Pointer[model.Model]
	snapshotDir string
	logger      *slog.Logger
}

// NewModelHolder creates a holder serving the empty model until a snapshot
// is loaded.
func NewModelHolder(snapshotDir string) *ModelHolder {
	h := &ModelHolder{
		snapshotDir: snapshotDir,
		logger:      slog.Default().With("component", "model-holder"),
	}
	h.current.Store(model.Empty())
	return h
}

// Current returns the active model. The returned model is immutable and safe
// to share across goroutines.
func (h *ModelHolder) Current() *model.Model {
	return h.current.Load()
}

// Reload loads the newest snapshot from disk and swaps it in. A missing
// snapshot directory leaves the current model in place; an unreadable
// snapshot is an error so the operator sees corruption rather than silently
// serving stale results forever.
func (h *ModelHolder) Reload() error {
	path, err := snapshot.Latest(h.snapshotDir)
	if err != nil {
		return err
	}
	if path == "" {
		h.logger.Info("no snapshot found, keeping current model",
			"snapshot_dir", h.snapshotDir,
		)
		return nil
	}
	m, err := snapshot.Read(path)
	if err != nil {
		return err
	}
	h.current.Store(m)
	h.logger.Info("model reloaded",
		"snapshot", path,
		"documents", m.Stats.DocCount,
		"terms", len(m.Stats.DocFreq),
		"avg_doc_length", m.Stats.AvgDocLength,
	)
	return nil
}

// HandleIndexComplete returns a Kafka handler that reloads the model when a
// rebuild finishes. Reload failures are logged and retried on the next
// announcement.
func (h *ModelHolder) HandleIndexComplete() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := h.Reload(); err != nil {
			h.logger.Error("model reload failed", "error", err)
		}
		return nil
	}
}
