package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the view of the store inside Update. All writes through a Tx commit
// or roll back together.
type Tx struct {
	q   querier
	now func() time.Time
}

// Get decodes the value at key into dst. Returns found=false when the key is
// absent, leaving dst untouched.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	return getEntry(ctx, s.db, key, dst)
}

// Set stores value at key as JSON, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return setEntry(ctx, s.db, s.now, key, value)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return deleteEntry(ctx, s.db, key)
}

// Keys returns all keys with the given prefix in byte order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return listKeys(ctx, s.db, prefix)
}

// Get is Store.Get inside the transaction.
func (t *Tx) Get(ctx context.Context, key string, dst any) (bool, error) {
	return getEntry(ctx, t.q, key, dst)
}

// Set is Store.Set inside the transaction.
func (t *Tx) Set(ctx context.Context, key string, value any) error {
	return setEntry(ctx, t.q, t.now, key, value)
}

// Delete is Store.Delete inside the transaction.
func (t *Tx) Delete(ctx context.Context, key string) error {
	return deleteEntry(ctx, t.q, key)
}

// Keys is Store.Keys inside the transaction.
func (t *Tx) Keys(ctx context.Context, prefix string) ([]string, error) {
	return listKeys(ctx, t.q, prefix)
}

func getEntry(ctx context.Context, q querier, key string, dst any) (bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("get %q: decode: %w", key, err)
	}
	return true, nil
}

func setEntry(ctx context.Context, q querier, now func() time.Time, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set %q: encode: %w", key, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func deleteEntry(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func listKeys(ctx context.Context, q querier, prefix string) ([]string, error) {
	// substr counts characters, and avoids LIKE wildcards in user-supplied ids.
	rows, err := q.QueryContext(ctx, `
		SELECT key FROM entries
		WHERE substr(key, 1, ?) = ?
		ORDER BY key ASC
	`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("keys %q: scan: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	return keys, nil
}

// UpsertList replaces the element with the same id in the JSON list at key,
// or appends it.
func UpsertList[T any](ctx context.Context, tx *Tx, key string, item T, id func(T) string) error {
	var list []T
	if _, err := tx.Get(ctx, key, &list); err != nil {
		return err
	}
	replaced := false
	for i := range list {
		if id(list[i]) == id(item) {
			list[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, item)
	}
	return tx.Set(ctx, key, list)
}
