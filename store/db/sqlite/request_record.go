package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/kulturbot/store"
)

func (d *DB) CreateRequestRecord(ctx context.Context, record *store.RequestRecord) error {
	if record.Ts == 0 {
		record.Ts = time.Now().Unix()
	}
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO request_record (owner_id, ts, topic, kind, embedding_tokens, synthesis_tokens)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.OwnerID, record.Ts, record.Topic, record.Kind, record.EmbeddingTokens, record.SynthesisTokens)
	if err != nil {
		return errors.Wrap(err, "failed to create request record")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get request record id")
	}
	record.ID = id
	return nil
}

func (d *DB) ListRequestRecords(ctx context.Context, ownerID string, limit int) ([]*store.RequestRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, owner_id, ts, topic, kind, embedding_tokens, synthesis_tokens
		FROM request_record WHERE owner_id = ? ORDER BY ts DESC, id DESC LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list request records")
	}
	defer rows.Close()

	var records []*store.RequestRecord
	for rows.Next() {
		record := &store.RequestRecord{}
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.Ts, &record.Topic, &record.Kind,
			&record.EmbeddingTokens, &record.SynthesisTokens); err != nil {
			return nil, errors.Wrap(err, "failed to scan request record")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
