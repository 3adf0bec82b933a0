package recorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/platform/db"
	"github.com/storekeep/storekeep/internal/shared"
)

var (
	// ErrSaleNotFound is returned when a sale id does not exist.
	ErrSaleNotFound = fmt.Errorf("sale %w", shared.ErrNotFound)
	// ErrPurchaseNotFound is returned when a purchase id does not exist.
	ErrPurchaseNotFound = fmt.Errorf("purchase %w", shared.ErrNotFound)
)

const (
	saleColumns = `s.id, s.bill_number, s.sale_date, s.payment_type, s.customer_id, c.name, s.total_amount, s.notes, s.created_by, s.request_key, s.created_at,
(SELECT COUNT(*) FROM sale_items si WHERE si.sale_id = s.id)`
	purchaseColumns = `p.id, p.reference_number, p.invoice_number, p.purchase_date, p.payment_type, p.supplier_id, sp.name, p.total_amount, p.notes, p.created_by, p.request_key, p.created_at,
(SELECT COUNT(*) FROM purchase_items pi WHERE pi.purchase_id = p.id)`
)

// Repository persists sales and purchases in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	begin       db.Beginner
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, begin: pool, idempotency: shared.NewIdempotencyStore(pool)}
}

// recordTxOptions is READ COMMITTED so a FOR UPDATE that waited on another
// sale reads the committed quantity. The quantity CAS rejects stale writes.
var recordTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

type txRepo struct {
	tx          pgx.Tx
	products    *catalog.TxStore
	idempotency *shared.IdempotencyStore
}

// WithTx runs fn inside a read-committed transaction. Serialization failures,
// deadlocks and document number collisions surface as ErrTxConflict or
// ErrNumberCollision so the caller may re-run the whole unit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxOptions(ctx, r.begin, recordTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, products: catalog.NewTxStore(tx), idempotency: r.idempotency})
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if db.IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	if constraint, ok := db.IsUniqueViolation(err); ok {
		switch constraint {
		case "uq_sales_bill_number", "uq_purchases_reference":
			return fmt.Errorf("%w: %s", ErrNumberCollision, constraint)
		}
	}
	return err
}

// LookupRequestKey returns the transaction recorded under key.
func (r *Repository) LookupRequestKey(ctx context.Context, kind Kind, key string) (uuid.UUID, error) {
	return r.idempotency.Lookup(ctx, string(kind), key)
}

// GetSale loads a sale and its items.
func (r *Repository) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales s LEFT JOIN customers c ON c.id = s.customer_id WHERE s.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT si.id, si.sale_id, si.line_no, si.product_id, p.name, si.quantity, si.unit_price, si.line_total
FROM sale_items si JOIN products p ON p.id = si.product_id
WHERE si.sale_id=$1 ORDER BY si.line_no`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	sale.Items = []SaleItem{}
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.LineNo, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return Sale{}, err
		}
		sale.Items = append(sale.Items, it)
	}
	return sale, rows.Err()
}

// ListSales returns a page of sale headers, newest first, and the total count.
func (r *Repository) ListSales(ctx context.Context, filters SaleFilters) ([]Sale, int, error) {
	w := newWhere()
	if !filters.From.IsZero() {
		w.add("s.sale_date >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		w.add("s.sale_date < ?", filters.To)
	}
	if filters.PaymentType != "" {
		w.add("s.payment_type = ?", string(filters.PaymentType))
	}
	if filters.CustomerID != nil {
		w.add("s.customer_id = ?", *filters.CustomerID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s WHERE `+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := filters.Page.Normalize()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM sales s LEFT JOIN customers c ON c.id = s.customer_id WHERE %s
ORDER BY s.sale_date DESC, s.created_at DESC, s.id LIMIT %d OFFSET %d`, saleColumns, w.clause(), page.Limit, page.Offset()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

// GetPurchase loads a purchase and its items.
func (r *Repository) GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error) {
	purchase, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases p LEFT JOIN suppliers sp ON sp.id = p.supplier_id WHERE p.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT pi.id, pi.purchase_id, pi.line_no, pi.product_id, p.name, pi.quantity, pi.unit_cost, pi.line_total
FROM purchase_items pi JOIN products p ON p.id = pi.product_id
WHERE pi.purchase_id=$1 ORDER BY pi.line_no`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	purchase.Items = []PurchaseItem{}
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.LineNo, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitCost, &it.LineTotal); err != nil {
			return Purchase{}, err
		}
		purchase.Items = append(purchase.Items, it)
	}
	return purchase, rows.Err()
}

// ListPurchases returns a page of purchase headers, newest first, and the total count.
func (r *Repository) ListPurchases(ctx context.Context, filters PurchaseFilters) ([]Purchase, int, error) {
	w := newWhere()
	if !filters.From.IsZero() {
		w.add("p.purchase_date >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		w.add("p.purchase_date < ?", filters.To)
	}
	if filters.SupplierID != nil {
		w.add("p.supplier_id = ?", *filters.SupplierID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases p WHERE `+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := filters.Page.Normalize()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchases p LEFT JOIN suppliers sp ON sp.id = p.supplier_id WHERE %s
ORDER BY p.purchase_date DESC, p.created_at DESC, p.id LIMIT %d OFFSET %d`, purchaseColumns, w.clause(), page.Limit, page.Offset()), w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	purchases := []Purchase{}
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

func (t *txRepo) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	return t.products.LockForUpdate(ctx, ids)
}

func (t *txRepo) ClaimRequestKey(ctx context.Context, kind Kind, key string, ref uuid.UUID) error {
	return t.idempotency.Claim(ctx, t.tx, string(kind), key, ref)
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sales (id, bill_number, sale_date, payment_type, customer_id, total_amount, notes, created_by, request_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		sale.ID, sale.BillNumber, sale.SaleDate, string(sale.PaymentType), sale.CustomerID, sale.TotalAmount, sale.Notes, sale.CreatedBy, sale.RequestKey)
	return err
}

func (t *txRepo) InsertSaleItems(ctx context.Context, saleID uuid.UUID, items []SaleItem) error {
	batch := &pgx.Batch{}
	const query = `INSERT INTO sale_items (id, sale_id, line_no, product_id, quantity, unit_price, line_total) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, it := range items {
		batch.Queue(query, it.ID, saleID, it.LineNo, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal)
	}
	return t.sendBatch(ctx, batch, len(items))
}

func (t *txRepo) InsertPurchase(ctx context.Context, purchase Purchase) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchases (id, reference_number, invoice_number, purchase_date, payment_type, supplier_id, total_amount, notes, created_by, request_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		purchase.ID, purchase.ReferenceNumber, purchase.InvoiceNumber, purchase.PurchaseDate, string(purchase.PaymentType), purchase.SupplierID,
		purchase.TotalAmount, purchase.Notes, purchase.CreatedBy, purchase.RequestKey)
	return err
}

func (t *txRepo) InsertPurchaseItems(ctx context.Context, purchaseID uuid.UUID, items []PurchaseItem) error {
	batch := &pgx.Batch{}
	const query = `INSERT INTO purchase_items (id, purchase_id, line_no, product_id, quantity, unit_cost, line_total) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, it := range items {
		batch.Queue(query, it.ID, purchaseID, it.LineNo, it.ProductID, it.Quantity, it.UnitCost, it.LineTotal)
	}
	return t.sendBatch(ctx, batch, len(items))
}

func (t *txRepo) UpdateProductStock(ctx context.Context, change catalog.StockChange) error {
	return t.products.ApplyStock(ctx, change)
}

func (t *txRepo) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	results := t.tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (Sale, error) {
	var (
		s       Sale
		payment string
	)
	err := row.Scan(&s.ID, &s.BillNumber, &s.SaleDate, &payment, &s.CustomerID, &s.Customer, &s.TotalAmount, &s.Notes,
		&s.CreatedBy, &s.RequestKey, &s.CreatedAt, &s.ItemCount)
	s.PaymentType = PaymentType(payment)
	return s, err
}

func scanPurchase(row rowScanner) (Purchase, error) {
	var (
		p       Purchase
		payment string
	)
	err := row.Scan(&p.ID, &p.ReferenceNumber, &p.InvoiceNumber, &p.PurchaseDate, &payment, &p.SupplierID, &p.Supplier, &p.TotalAmount,
		&p.Notes, &p.CreatedBy, &p.RequestKey, &p.CreatedAt, &p.ItemCount)
	p.PaymentType = PaymentType(payment)
	return p, err
}

type where struct {
	parts []string
	args  []any
}

func newWhere() *where {
	return &where{parts: []string{"1=1"}}
}

func (w *where) add(clause string, value any) {
	w.args = append(w.args, value)
	w.parts = append(w.parts, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) clause() string {
	return strings.Join(w.parts, " AND ")
}
