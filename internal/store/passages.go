// Package store persists the corpus of passages in PostgreSQL. The store is
// the system of record: every index rebuild reads the full passage list from
// here, so mutations are transactional full replacements per source and the
// read path returns passages in a stable insertion order.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	apperrors "github.com/arvind-menon/passage-retrieval-platform/pkg/errors"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/postgres"
)

// SourceInfo summarises one ingested source document.
type SourceInfo struct {
	SourceID     string `json:"source_id"`
	PassageCount int    `json:"passage_count"`
}

// PassageStore reads and writes passages in PostgreSQL.
type PassageStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a PassageStore backed by the given client.
func New(db *postgres.Client) *PassageStore {
	return &PassageStore{
		db:     db,
		logger: slog.Default().With("component", "passage-store"),
	}
}

// EnsureSchema creates the passages table and its indexes if absent.
func (s *PassageStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS passages (
			seq        BIGSERIAL PRIMARY KEY,
			passage_id TEXT NOT NULL,
			source_id  TEXT NOT NULL,
			text       TEXT NOT NULL,
			UNIQUE (source_id, passage_id)
		);
		CREATE INDEX IF NOT EXISTS passages_source_idx ON passages (source_id);
	`)
	if err != nil {
		return fmt.Errorf("creating passages schema: %w", err)
	}
	return nil
}

// ReplaceSource atomically replaces all passages of one source. Re-ingesting
// a source therefore never leaves a mix of old and new passages behind.
func (s *PassageStore) ReplaceSource(ctx context.Context, sourceID string, passages []model.Passage) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM passages WHERE source_id = $1`, sourceID); err != nil {
			return fmt.Errorf("deleting existing passages for %s: %w", sourceID, err)
		}
		for _, p := range passages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO passages (passage_id, source_id, text) VALUES ($1, $2, $3)`,
				p.ID, sourceID, p.Text); err != nil {
				return fmt.Errorf("inserting passage %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// DeleteSource removes every passage of the given source. Deleting an unknown
// source returns ErrSourceNotFound.
func (s *PassageStore) DeleteSource(ctx context.Context, sourceID string) error {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM passages WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("deleting passages for %s: %w", sourceID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return apperrors.Newf(apperrors.ErrSourceNotFound, 404, "source %s", sourceID)
	}
	s.logger.Info("source deleted", "source_id", sourceID, "passages", rows)
	return nil
}

// ListAll returns the full passage list in insertion order. This is the
// rebuild input: stable ordering keeps rebuilds deterministic for an
// unchanged corpus.
func (s *PassageStore) ListAll(ctx context.Context) ([]model.Passage, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT passage_id, source_id, text FROM passages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing passages: %w", err)
	}
	defer rows.Close()

	passages := make([]model.Passage, 0)
	for rows.Next() {
		var p model.Passage
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Text); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}
	return passages, nil
}

// ListSources returns per-source passage counts, ordered by source ID.
func (s *PassageStore) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT source_id, COUNT(*) FROM passages GROUP BY source_id ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	sources := make([]SourceInfo, 0)
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.SourceID, &info.PassageCount); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// Count returns the number of stored passages.
func (s *PassageStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return n, nil
}
