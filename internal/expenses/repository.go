package expenses

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

const expenseColumns = `id, expense_type, description, amount, expense_date, payment_method, created_by, created_at, updated_at`

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var (
		e      Expense
		typ    string
		method string
		day    time.Time
	)
	err := row.Scan(&e.ID, &typ, &e.Description, &e.Amount, &day, &method, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	e.Type = Type(typ)
	e.PaymentMethod = Method(method)
	e.Date = shared.NewDate(day)
	return e, err
}

func filterClause(filters Filters) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if !filters.From.IsZero() {
		add("expense_date >= ?::date", filters.From)
	}
	if !filters.To.IsZero() {
		add("expense_date < ?::date", filters.To)
	}
	if filters.Type != "" {
		add("expense_type = ?", string(filters.Type))
	}
	return strings.Join(where, " AND "), args
}

// List returns a page of expenses, newest first, and the total count.
func (r *Repository) List(ctx context.Context, filters Filters) ([]Expense, int, error) {
	clause, args := filterClause(filters)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := filters.Page.Normalize()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM expenses WHERE %s ORDER BY expense_date DESC, created_at DESC LIMIT %d OFFSET %d`,
		expenseColumns, clause, page.Limit, page.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Sum totals the amounts matching filters.
func (r *Repository) Sum(ctx context.Context, filters Filters) (decimal.Decimal, error) {
	clause, args := filterClause(filters)
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE `+clause, args...).Scan(&total)
	return total, err
}

// Get loads an expense.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return e, err
}

// Create inserts an expense.
func (r *Repository) Create(ctx context.Context, e Expense) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `INSERT INTO expenses (id, expense_type, description, amount, expense_date, payment_method, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING `+expenseColumns,
		e.ID, string(e.Type), e.Description, e.Amount, e.Date.Time, string(e.PaymentMethod), e.CreatedBy))
}

// Update overwrites an expense.
func (r *Repository) Update(ctx context.Context, e Expense) (Expense, error) {
	updated, err := scanExpense(r.pool.QueryRow(ctx, `UPDATE expenses SET expense_type=$2, description=$3, amount=$4, expense_date=$5, payment_method=$6, updated_at=NOW()
WHERE id=$1
RETURNING `+expenseColumns,
		e.ID, string(e.Type), e.Description, e.Amount, e.Date.Time, string(e.PaymentMethod)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return updated, err
}

// Delete removes an expense.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}
