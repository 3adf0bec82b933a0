package catalog

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

	"github.com/storekeep/storekeep/internal/platform/db"
	"github.com/storekeep/storekeep/internal/shared"
)

const productColumns = `id, name, category, brand, unit, quantity, buying_price, selling_price, supplier_id, reorder_level, expiry_date, sku, created_at, updated_at`

// nameCandidateLimit bounds how many same-name rows a lookup returns.
const nameCandidateLimit = 10

// Repository persists products in PostgreSQL.
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

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.Unit, &p.Quantity, &p.BuyingPrice, &p.SellingPrice,
		&p.SupplierID, &p.ReorderLevel, &p.ExpiryDate, &p.SKU, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// FindByID loads a product by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// FindByName returns every product whose name_key equals shared.NormalizeName(name).
func (r *Repository) FindByName(ctx context.Context, name string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE name_key = $1 ORDER BY created_at, id LIMIT $2`, shared.NormalizeName(name), nameCandidateLimit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

var sortColumns = map[string]string{
	"name":       "name",
	"quantity":   "quantity",
	"category":   "category",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// List returns a page of products matching filters and the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filters.Search != "" {
		add("(name ILIKE ? OR sku ILIKE ? OR brand ILIKE ?)", "%"+escapeLike(filters.Search)+"%")
	}
	if filters.Category != "" {
		add("category = ?", filters.Category)
	}
	if filters.LowStockOnly {
		where = append(where, "quantity < reorder_level")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "name"
	}
	dir := "ASC"
	if strings.EqualFold(filters.SortDir, "desc") {
		dir = "DESC"
	}
	page := filters.Page.Normalize()
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s %s, id LIMIT %d OFFSET %d`,
		productColumns, clause, column, dir, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// LowStock lists products below their reorder level, lowest cover first.
func (r *Repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE quantity < reorder_level ORDER BY (quantity - reorder_level), name`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (id, name, category, brand, unit, quantity, buying_price, selling_price, supplier_id, reorder_level, expiry_date, sku, name_key, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Brand, p.Unit, p.Quantity, p.BuyingPrice, p.SellingPrice, p.SupplierID, p.ReorderLevel, p.ExpiryDate, p.SKU, shared.NormalizeName(p.Name))
	created, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteError(err)
	}
	return created, nil
}

// Update overwrites every editable field of a product.
func (r *Repository) Update(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET name=$2, category=$3, brand=$4, unit=$5, quantity=$6, buying_price=$7, selling_price=$8,
supplier_id=$9, reorder_level=$10, expiry_date=$11, sku=$12, name_key=$13, updated_at=NOW()
WHERE id=$1
RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Brand, p.Unit, p.Quantity, p.BuyingPrice, p.SellingPrice, p.SupplierID, p.ReorderLevel, p.ExpiryDate, p.SKU, shared.NormalizeName(p.Name))
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, mapWriteError(err)
	}
	return updated, nil
}

// Delete removes a product that no transaction references.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	if constraint, ok := db.IsUniqueViolation(err); ok {
		switch constraint {
		case "uq_products_sku":
			return ErrDuplicateSKU
		case "uq_products_name_key":
			return ErrDuplicateName
		}
	}
	if db.IsForeignKeyViolation(err) {
		return ErrProductInUse
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// TxStore exposes product writes that must run inside a caller-owned transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore binds product writes to tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// LockForUpdate loads the given products with row locks held until the
// transaction ends. Rows are locked in id order so that concurrent callers
// touching overlapping products cannot deadlock.
func (s *TxStore) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	locked := make(map[uuid.UUID]Product, len(products))
	for _, p := range products {
		locked[p.ID] = p
	}
	return locked, nil
}

// ApplyStock writes the new quantity, and buying price when set, only if the
// stored quantity still equals ExpectedQuantity.
func (s *TxStore) ApplyStock(ctx context.Context, change StockChange) error {
	var price any
	if change.NewBuyingPrice != nil {
		price = *change.NewBuyingPrice
	}
	tag, err := s.tx.Exec(ctx, `UPDATE products SET quantity=$2, buying_price=COALESCE($3, buying_price), updated_at=$4
WHERE id=$1 AND quantity=$5`, change.ProductID, change.NewQuantity, price, time.Now().UTC(), change.ExpectedQuantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockConflict
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
