package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/ops"
)

// ErrNotQueued is returned by RemoveOperation when the entry is already gone.
var ErrNotQueued = errors.New("operation not queued")

// Enqueue appends an entry to the pending queue and returns it with Seq set.
// The row is durable when Enqueue returns.
func (s *Store) Enqueue(ctx context.Context, e ops.Entry) (ops.Entry, error) {
	return enqueue(ctx, s.db, e)
}

// PendingOperations returns every queued entry in FIFO order.
func (s *Store) PendingOperations(ctx context.Context) ([]ops.Entry, error) {
	return pending(ctx, s.db)
}

// PendingCount returns the queue length.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	return pendingCount(ctx, s.db)
}

// RemoveOperation deletes one entry after its remote mutation succeeded.
func (s *Store) RemoveOperation(ctx context.Context, seq int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE seq = ?`, seq)
	if err != nil {
		return fmt.Errorf("remove operation %d: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove operation %d: rows affected: %w", seq, err)
	}
	if n == 0 {
		return fmt.Errorf("remove operation %d: %w", seq, ErrNotQueued)
	}
	return nil
}

// ClearOperations deletes every entry with seq <= throughSeq. The bound keeps
// a clear issued after a drain from discarding entries enqueued meanwhile.
func (s *Store) ClearOperations(ctx context.Context, throughSeq int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE seq <= ?`, throughSeq); err != nil {
		return fmt.Errorf("clear operations: %w", err)
	}
	return nil
}

// Enqueue is Store.Enqueue inside the transaction.
func (t *Tx) Enqueue(ctx context.Context, e ops.Entry) (ops.Entry, error) {
	return enqueue(ctx, t.q, e)
}

// PendingCount is Store.PendingCount inside the transaction.
func (t *Tx) PendingCount(ctx context.Context) (int, error) {
	return pendingCount(ctx, t.q)
}

func enqueue(ctx context.Context, q querier, e ops.Entry) (ops.Entry, error) {
	if e.Payload == nil {
		return ops.Entry{}, fmt.Errorf("enqueue %s: nil payload", e.ID)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return ops.Entry{}, fmt.Errorf("enqueue %s: encode: %w", e.ID, err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO pending_operations (id, kind, payload, digest, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), string(payload), e.Digest, e.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return ops.Entry{}, fmt.Errorf("enqueue %s: %w", e.ID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return ops.Entry{}, fmt.Errorf("enqueue %s: last insert id: %w", e.ID, err)
	}
	e.Seq = seq
	return e, nil
}

func pending(ctx context.Context, q querier) ([]ops.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT seq, id, kind, payload, digest, enqueued_at
		FROM pending_operations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("pending operations: %w", err)
	}
	defer rows.Close()

	var entries []ops.Entry
	for rows.Next() {
		var (
			e          ops.Entry
			kind       string
			payload    string
			enqueuedAt string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &kind, &payload, &e.Digest, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("pending operations: scan: %w", err)
		}
		e.Kind = ops.Kind(kind)
		e.Payload, err = ops.DecodePayload(e.Kind, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("pending operation %d: %w", e.Seq, err)
		}
		e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("pending operation %d: enqueued_at: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending operations: %w", err)
	}
	return entries, nil
}

func pendingCount(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}
