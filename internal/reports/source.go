package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// Source provides the raw aggregates reports are built from.
type Source interface {
	SalesTotal(ctx context.Context, p Period) (decimal.Decimal, int, error)
	PurchasesTotal(ctx context.Context, p Period) (decimal.Decimal, int, error)
	ExpensesTotal(ctx context.Context, p Period) (decimal.Decimal, error)
	LowStockCount(ctx context.Context) (int, error)
	SalesByDay(ctx context.Context, p Period) ([]DaySales, error)
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}

// PGSource reads aggregates from PostgreSQL.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource constructs PGSource.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// SalesTotal sums sale totals in p.
func (s *PGSource) SalesTotal(ctx context.Context, p Period) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM sales WHERE sale_date >= $1 AND sale_date < $2`, p.From, p.To).Scan(&total, &count)
	return total, count, err
}

// PurchasesTotal sums purchase totals in p.
func (s *PGSource) PurchasesTotal(ctx context.Context, p Period) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM purchases WHERE purchase_date >= $1 AND purchase_date < $2`, p.From, p.To).Scan(&total, &count)
	return total, count, err
}

// ExpensesTotal sums expenses dated in p.
func (s *PGSource) ExpensesTotal(ctx context.Context, p Period) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE expense_date >= $1::date AND expense_date < $2::date`, p.From, p.To).Scan(&total)
	return total, err
}

// LowStockCount counts products below their reorder level.
func (s *PGSource) LowStockCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE quantity < reorder_level`).Scan(&count)
	return count, err
}

// SalesByDay groups sales in p by UTC calendar day, omitting empty days.
func (s *PGSource) SalesByDay(ctx context.Context, p Period) ([]DaySales, error) {
	rows, err := s.pool.Query(ctx, `SELECT (sale_date AT TIME ZONE 'UTC')::date AS day, COUNT(*), SUM(total_amount)
FROM sales WHERE sale_date >= $1 AND sale_date < $2
GROUP BY day ORDER BY day`, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DaySales{}
	for rows.Next() {
		var (
			day time.Time
			row DaySales
		)
		if err := rows.Scan(&day, &row.Count, &row.Total); err != nil {
			return nil, err
		}
		row.Date = shared.NewDate(day)
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecentActivity merges the latest sales and purchases, newest first.
func (s *PGSource) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, id, number, at, amount, party FROM (
  (SELECT 'sale' AS kind, s.id, s.bill_number AS number, s.sale_date AS at, s.total_amount AS amount, c.name AS party, s.created_at
   FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
   ORDER BY s.sale_date DESC, s.created_at DESC LIMIT $1)
  UNION ALL
  (SELECT 'purchase', p.id, p.reference_number, p.purchase_date, p.total_amount, sp.name, p.created_at
   FROM purchases p LEFT JOIN suppliers sp ON sp.id = p.supplier_id
   ORDER BY p.purchase_date DESC, p.created_at DESC LIMIT $1)
) feed ORDER BY at DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Kind, &a.ID, &a.Number, &a.At, &a.Amount, &a.Party); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
