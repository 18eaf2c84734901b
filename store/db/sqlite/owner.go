package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/kulturbot/store"
)

func (d *DB) GetOwner(ctx context.Context, id string) (*store.Owner, error) {
	owner := &store.Owner{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, request_max_symbols, total_requests, embedding_tokens, synthesis_tokens
		FROM owner WHERE id = ?
	`, id).Scan(&owner.ID, &owner.RequestMaxSymbols, &owner.TotalRequests, &owner.EmbeddingTokens, &owner.SynthesisTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get owner")
	}
	return owner, nil
}

func (d *DB) UpsertOwner(ctx context.Context, owner *store.Owner) error {
	// Insert-if-absent: an existing owner keeps its counters and settings.
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO owner (id, request_max_symbols, total_requests, embedding_tokens, synthesis_tokens)
		VALUES (?, ?, 0, 0, 0)
		ON CONFLICT (id) DO NOTHING
	`, owner.ID, owner.RequestMaxSymbols)
	if err != nil {
		return errors.Wrap(err, "failed to upsert owner")
	}
	return nil
}

func (d *DB) UpdateOwner(ctx context.Context, id string, delta *store.OwnerDelta) (*store.Owner, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	if delta.ResetTokens {
		if _, err := tx.ExecContext(ctx, `
			UPDATE owner SET embedding_tokens = 0, synthesis_tokens = 0 WHERE id = ?
		`, id); err != nil {
			return nil, errors.Wrap(err, "failed to reset owner tokens")
		}
	}

	if delta.AddRequests != 0 || delta.AddEmbeddingTokens != 0 || delta.AddSynthesisTokens != 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE owner SET
				total_requests = total_requests + ?,
				embedding_tokens = embedding_tokens + ?,
				synthesis_tokens = synthesis_tokens + ?
			WHERE id = ?
		`, delta.AddRequests, delta.AddEmbeddingTokens, delta.AddSynthesisTokens, id); err != nil {
			return nil, errors.Wrap(err, "failed to update owner counters")
		}
	}

	owner := &store.Owner{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, request_max_symbols, total_requests, embedding_tokens, synthesis_tokens
		FROM owner WHERE id = ?
	`, id).Scan(&owner.ID, &owner.RequestMaxSymbols, &owner.TotalRequests, &owner.EmbeddingTokens, &owner.SynthesisTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("owner %q not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read owner after update")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit owner update")
	}
	return owner, nil
}
