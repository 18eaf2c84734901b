package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/kulturbot/store"
)

func (d *DB) GetWorker(ctx context.Context, code string) (*store.Worker, error) {
	worker := &store.Worker{}
	err := d.db.QueryRowContext(ctx, `
		SELECT code, owner_id, created_ts FROM worker WHERE code = ?
	`, code).Scan(&worker.Code, &worker.OwnerID, &worker.CreatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get worker")
	}
	return worker, nil
}

func (d *DB) CreateWorker(ctx context.Context, worker *store.Worker) error {
	if worker.CreatedTs == 0 {
		worker.CreatedTs = time.Now().Unix()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO worker (code, owner_id, created_ts) VALUES (?, ?, ?)
	`, worker.Code, worker.OwnerID, worker.CreatedTs)
	if err != nil {
		return errors.Wrap(err, "failed to create worker")
	}
	return nil
}

func (d *DB) CreateWorkerMessage(ctx context.Context, msg *store.WorkerMessage) (*store.WorkerMessage, error) {
	if msg.CreatedTs == 0 {
		msg.CreatedTs = time.Now().Unix()
	}
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO worker_message (owner_id, worker_code, body, created_ts)
		VALUES (?, ?, ?, ?)
	`, msg.OwnerID, msg.WorkerCode, msg.Body, msg.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker message")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get worker message id")
	}
	msg.ID = id
	return msg, nil
}

func (d *DB) ListWorkerMessages(ctx context.Context, ownerID string) ([]*store.WorkerMessage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, owner_id, worker_code, body, created_ts
		FROM worker_message WHERE owner_id = ? ORDER BY created_ts ASC
	`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list worker messages")
	}
	defer rows.Close()

	var messages []*store.WorkerMessage
	for rows.Next() {
		msg := &store.WorkerMessage{}
		if err := rows.Scan(&msg.ID, &msg.OwnerID, &msg.WorkerCode, &msg.Body, &msg.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan worker message")
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
