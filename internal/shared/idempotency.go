package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// IdempotencyStore persists processed request keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

var (
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrIdempotencyUnknown indicates the key was never recorded.
	ErrIdempotencyUnknown = errors.New("idempotency key not recorded")
)

// Claim inserts the key through exec, normally the caller's open transaction,
// so the key commits or rolls back together with the work it guards.
func (s *IdempotencyStore) Claim(ctx context.Context, exec Execer, kind, key string, refID uuid.UUID) error {
	if exec == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if kind == "" {
		return errors.New("idempotency kind required")
	}
	_, err := exec.Exec(ctx, `INSERT INTO request_keys (kind, key, ref_id, created_at) VALUES ($1, $2, $3, $4)`, kind, key, refID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Lookup returns the entity recorded under key.
func (s *IdempotencyStore) Lookup(ctx context.Context, kind, key string) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, errors.New("idempotency store not initialised")
	}
	var ref uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT ref_id FROM request_keys WHERE kind=$1 AND key=$2`, kind, key).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrIdempotencyUnknown
	}
	return ref, err
}

// Cleanup removes entries older than retention and returns the number removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM request_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
