// Package rebuild reacts to corpus change events by rebuilding the entire
// index model from the stored passage list and persisting it as a new
// snapshot. Rebuilds are serialised through a single worker loop, which is
// the platform's single-writer discipline: two racing mutations cannot
// interleave into a model reflecting neither, because each rebuild reads the
// complete corpus after both writes are durable.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/builder"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/metrics"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/resilience"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/tracing"
)

// PassageSource supplies the full corpus used as rebuild input.
type PassageSource interface {
	ListAll(ctx context.Context) ([]model.Passage, error)
}

// EventPublisher publishes rebuild lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Rebuilder owns the rebuild loop. Trigger may be called from any goroutine;
// bursts of triggers within the debounce window coalesce into one rebuild.
type Rebuilder struct {
	source     PassageSource
	completes  EventPublisher
	invalidate EventPublisher
	cfg        config.IndexConfig
	metrics    *metrics.Metrics
	trigger    chan struct{}
	logger     *slog.Logger
}

// New creates a Rebuilder. completes receives IndexCompleteEvents and
// invalidate receives cache invalidation signals; either may be nil when the
// corresponding topic is not wired (tests, single-process runs).
func New(source PassageSource, completes, invalidate EventPublisher, cfg config.IndexConfig, m *metrics.Metrics) *Rebuilder {
	return &Rebuilder{
		source:     source,
		completes:  completes,
		invalidate: invalidate,
		cfg:        cfg,
		metrics:    m,
		trigger:    make(chan struct{}, 1),
		logger:     slog.Default().With("component", "rebuilder"),
	}
}

// Trigger requests a rebuild. It never blocks: a rebuild request that
// arrives while one is already pending folds into it.
func (r *Rebuilder) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled. Each trigger is debounced
// so that a burst of source uploads causes one rebuild, not one per upload.
func (r *Rebuilder) Run(ctx context.Context) error {
	r.logger.Info("rebuild loop started",
		"snapshot_dir", r.cfg.SnapshotDir,
		"debounce", r.cfg.RebuildDebounce,
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rebuild loop stopping", "reason", ctx.Err())
			return nil
		case <-r.trigger:
		}

		if r.cfg.RebuildDebounce > 0 {
			timer := time.NewTimer(r.cfg.RebuildDebounce)
		drain:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-r.trigger:
					// Another change arrived; keep waiting out the window.
				case <-timer.C:
					break drain
				}
			}
		}

		if err := resilience.WithTimeout(ctx, r.cfg.RebuildTimeout, "rebuild", r.RebuildOnce); err != nil {
			r.logger.Error("rebuild failed", "error", err)
			if r.metrics != nil {
				r.metrics.RebuildsTotal.WithLabelValues("error").Inc()
			}
		}
	}
}

// RebuildOnce loads the full passage list, builds a fresh model, writes it as
// a new snapshot, prunes old snapshots, and announces completion. It is the
// only code path that writes snapshots.
func (r *Rebuilder) RebuildOnce(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "rebuild", fmt.Sprintf("rb-%d", start.UnixNano()))
	defer span.Log()
	defer span.End()

	var passages []model.Passage
	err := resilience.Retry(ctx, "load-passages", resilience.RetryConfig{}, func() error {
		var loadErr error
		passages, loadErr = r.source.ListAll(ctx)
		return loadErr
	})
	if err != nil {
		return fmt.Errorf("loading passages for rebuild: %w", err)
	}
	span.SetAttr("passages", len(passages))

	_, buildSpan := tracing.StartChildSpan(ctx, "build-model")
	m := builder.Build(passages)
	buildSpan.End()

	name, err := snapshot.Write(r.cfg.SnapshotDir, m)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if r.metrics != nil {
		if info, err := os.Stat(filepath.Join(r.cfg.SnapshotDir, name)); err == nil {
			r.metrics.SnapshotSizeBytes.Set(float64(info.Size()))
		}
	}
	if removed, err := snapshot.Prune(r.cfg.SnapshotDir, r.cfg.KeepSnapshots); err != nil {
		r.logger.Warn("pruning old snapshots failed", "error", err)
	} else if removed > 0 {
		r.logger.Debug("old snapshots pruned", "removed", removed)
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RebuildsTotal.WithLabelValues("ok").Inc()
		r.metrics.RebuildDuration.Observe(elapsed.Seconds())
		r.metrics.ModelDocuments.Set(float64(m.Stats.DocCount))
		r.metrics.CorpusPassages.Set(float64(len(passages)))
	}
	r.logger.Info("index rebuilt",
		"snapshot", name,
		"documents", m.Stats.DocCount,
		"avg_doc_length", m.Stats.AvgDocLength,
		"terms", len(m.Stats.DocFreq),
		"duration", elapsed,
	)

	r.announce(ctx, name, m, elapsed)
	return nil
}

// announce publishes IndexComplete and CacheInvalidate. Failures are logged:
// searchers also reload on startup and the next rebuild re-announces.
func (r *Rebuilder) announce(ctx context.Context, name string, m *model.Model, elapsed time.Duration) {
	if r.completes != nil {
		event := kafka.Event{
			Key: filepath.Base(name),
			Value: ingest.IndexCompleteEvent{
				Snapshot:   name,
				DocCount:   m.Stats.DocCount,
				BuiltAt:    time.Now().UTC(),
				BuildMicro: elapsed.Microseconds(),
			},
		}
		if err := r.completes.Publish(ctx, event); err != nil {
			r.logger.Error("failed to publish index-complete", "error", err)
		}
	}
	if r.invalidate != nil {
		event := kafka.Event{
			Key:   "invalidate",
			Value: map[string]string{"reason": "rebuild", "snapshot": name},
		}
		if err := r.invalidate.Publish(ctx, event); err != nil {
			r.logger.Error("failed to publish cache-invalidate", "error", err)
		}
	}
}

// HandleCorpusChanged returns a Kafka message handler that triggers rebuilds.
func (r *Rebuilder) HandleCorpusChanged() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingest.CorpusChangedEvent](value)
		if err != nil {
			// Malformed events are dropped, not retried: the rebuild reads
			// the full corpus anyway, so no data is lost.
			r.logger.Error("dropping malformed corpus-changed event", "error", err)
			return nil
		}
		r.logger.Debug("corpus change received",
			"source_id", event.SourceID,
			"action", event.Action,
		)
		r.Trigger()
		return nil
	}
}
