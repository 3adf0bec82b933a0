package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/catalog"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	execTag    pgconn.CommandTag
	execErr    error
	batch      *fakeBatchResults
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return t.execTag, t.execErr
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	t.batch.queued = b.Len()
	return t.batch
}

type fakeBatchResults struct {
	pgx.BatchResults
	errs   []error
	queued int
	execs  int
	closed bool
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	i := r.execs
	r.execs++
	if i < len(r.errs) && r.errs[i] != nil {
		return pgconn.CommandTag{}, r.errs[i]
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Close() error {
	r.closed = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	return b.tx, nil
}

func TestRepositoryWithTxRunsReadCommitted(t *testing.T) {
	begin := &fakeBeginner{tx: &fakeTx{}}
	repo := &Repository{begin: begin}

	var seen TxRepository
	err := repo.WithTx(context.Background(), func(_ context.Context, tx TxRepository) error {
		seen = tx
		return nil
	})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, pgx.ReadCommitted, begin.opts.IsoLevel)
	assert.True(t, begin.tx.committed)
}

func TestRepositoryWithTxRollsBackAndClassifies(t *testing.T) {
	begin := &fakeBeginner{tx: &fakeTx{}}
	repo := &Repository{begin: begin}

	err := repo.WithTx(context.Background(), func(context.Context, TxRepository) error {
		return &pgconn.PgError{Code: "40P01"}
	})

	require.ErrorIs(t, err, ErrTxConflict)
	assert.True(t, isConflict(err))
	assert.False(t, begin.tx.committed)
	assert.True(t, begin.tx.rolledBack)
}

func TestClassify(t *testing.T) {
	plain := errors.New("connection refused")
	cases := []struct {
		name     string
		err      error
		want     error
		conflict bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: ErrTxConflict, conflict: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ErrTxConflict, conflict: true},
		{name: "bill number collision", err: &pgconn.PgError{Code: "23505", ConstraintName: "uq_sales_bill_number"}, want: ErrNumberCollision, conflict: true},
		{name: "purchase reference collision", err: &pgconn.PgError{Code: "23505", ConstraintName: "uq_purchases_reference"}, want: ErrNumberCollision, conflict: true},
		{name: "check violation", err: &pgconn.PgError{Code: "23514", ConstraintName: "products_quantity_check"}},
		{name: "other unique violation", err: &pgconn.PgError{Code: "23505", ConstraintName: "uq_request_keys"}},
		{name: "plain", err: plain, want: plain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if tc.want != nil {
				require.ErrorIs(t, got, tc.want)
			}
			assert.Equal(t, tc.conflict, isConflict(got))
		})
	}
	assert.NoError(t, classify(nil))
}

func TestUpdateProductStockDetectsQuantityDrift(t *testing.T) {
	change := catalog.StockChange{
		ProductID:        uuid.New(),
		ExpectedQuantity: decimal.NewFromInt(5),
		NewQuantity:      decimal.NewFromInt(2),
	}

	tx := &fakeTx{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := &txRepo{tx: tx, products: catalog.NewTxStore(tx)}
	err := repo.UpdateProductStock(context.Background(), change)
	require.ErrorIs(t, err, catalog.ErrStockConflict)
	assert.True(t, isConflict(err))

	tx.execTag = pgconn.NewCommandTag("UPDATE 1")
	require.NoError(t, repo.UpdateProductStock(context.Background(), change))
}

func TestInsertSaleItemsStopsAtFirstFailure(t *testing.T) {
	failure := &pgconn.PgError{Code: "23503", ConstraintName: "sale_items_product_id_fkey"}
	tx := &fakeTx{batch: &fakeBatchResults{errs: []error{nil, failure}}}
	repo := &txRepo{tx: tx}
	items := []SaleItem{
		{ID: uuid.New(), LineNo: 1, ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)},
		{ID: uuid.New(), LineNo: 2, ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)},
		{ID: uuid.New(), LineNo: 3, ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)},
	}

	err := repo.InsertSaleItems(context.Background(), uuid.New(), items)

	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, tx.batch.queued)
	assert.Equal(t, 2, tx.batch.execs)
	assert.True(t, tx.batch.closed)
}

func TestInsertSaleItemsDrainsBatch(t *testing.T) {
	tx := &fakeTx{batch: &fakeBatchResults{}}
	repo := &txRepo{tx: tx}
	items := []SaleItem{{ID: uuid.New(), LineNo: 1, ProductID: uuid.New(), Quantity: decimal.NewFromInt(2)}}

	require.NoError(t, repo.InsertSaleItems(context.Background(), uuid.New(), items))
	assert.Equal(t, 1, tx.batch.execs)
	assert.True(t, tx.batch.closed)
}
