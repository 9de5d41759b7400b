package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/ops"
)

// AppliedOperation is the back-office record of an applied operation.
type AppliedOperation struct {
	ID        string
	Kind      ops.Kind
	Digest    string
	AppliedAt time.Time
}

// MarkApplied records an operation id as applied.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency. If the id was applied
// before, returns inserted=false and the digest stored at that time so the
// caller can tell a resubmission from an id reused for a different payload.
func (t *Tx) MarkApplied(ctx context.Context, id string, kind ops.Kind, digest string) (inserted bool, existingDigest string, err error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO applied_operations (id, kind, digest, applied_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(kind), digest, t.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, "", fmt.Errorf("mark applied %s: insert: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("mark applied %s: rows affected: %w", id, err)
	}
	if n > 0 {
		return true, digest, nil
	}

	err = t.q.QueryRowContext(ctx, `SELECT digest FROM applied_operations WHERE id = ?`, id).Scan(&existingDigest)
	if err != nil {
		return false, "", fmt.Errorf("mark applied %s: select existing: %w", id, err)
	}
	return false, existingDigest, nil
}

// AppliedOperation returns the applied record for id, if any.
func (s *Store) AppliedOperation(ctx context.Context, id string) (AppliedOperation, bool, error) {
	var (
		a         AppliedOperation
		kind      string
		appliedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, digest, applied_at FROM applied_operations WHERE id = ?
	`, id).Scan(&a.ID, &kind, &a.Digest, &appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AppliedOperation{}, false, nil
	}
	if err != nil {
		return AppliedOperation{}, false, fmt.Errorf("applied operation %s: %w", id, err)
	}
	a.Kind = ops.Kind(kind)
	a.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt)
	if err != nil {
		return AppliedOperation{}, false, fmt.Errorf("applied operation %s: applied_at: %w", id, err)
	}
	return a, true, nil
}

// AppliedCount returns how many operations the back-office has applied.
func (s *Store) AppliedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applied_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("applied count: %w", err)
	}
	return n, nil
}
