package parties

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekeep/storekeep/internal/shared"
)

const (
	supplierColumns = `id, name, contact_number, email, address, outstanding_balance, created_at, updated_at`
	customerColumns = `id, name, contact_number, address, credit_limit, outstanding_balance, created_at, updated_at`
	nameMatchLimit  = 10
)

// Repository persists suppliers and customers in PostgreSQL.
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

func scanSupplier(row rowScanner) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactNumber, &s.Email, &s.Address, &s.OutstandingBalance, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactNumber, &c.Address, &c.CreditLimit, &c.OutstandingBalance, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func searchClause(search string) (string, []any) {
	if strings.TrimSpace(search) == "" {
		return "1=1", nil
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(search))
	return "(name ILIKE $1 OR contact_number ILIKE $1)", []any{"%" + escaped + "%"}
}

// ListSuppliers returns a page of suppliers ordered by name.
func (r *Repository) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where, args := searchClause(filters.Search)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := filters.Page.Normalize()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM suppliers WHERE %s ORDER BY name, id LIMIT %d OFFSET %d`, supplierColumns, where, page.Limit, page.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	suppliers, err := collect(rows, scanSupplier)
	return suppliers, total, err
}

// GetSupplier loads a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

// FindSuppliersByName returns suppliers whose name_key equals shared.NormalizeName(name).
func (r *Repository) FindSuppliersByName(ctx context.Context, name string) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE name_key = $1 ORDER BY created_at, id LIMIT $2`, shared.NormalizeName(name), nameMatchLimit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSupplier)
}

// SaveSupplier inserts or updates a supplier.
func (r *Repository) SaveSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	saved, err := scanSupplier(r.pool.QueryRow(ctx, `INSERT INTO suppliers (id, name, name_key, contact_number, email, address, outstanding_balance, created_at, updated_at)
VALUES ($1,$2,$7,$3,$4,$5,$6,NOW(),NOW())
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, name_key=EXCLUDED.name_key, contact_number=EXCLUDED.contact_number, email=EXCLUDED.email,
address=EXCLUDED.address, outstanding_balance=EXCLUDED.outstanding_balance, updated_at=NOW()
RETURNING `+supplierColumns, s.ID, s.Name, s.ContactNumber, s.Email, s.Address, s.OutstandingBalance, shared.NormalizeName(s.Name)))
	return saved, err
}

// DeleteSupplier removes a supplier; products and purchases keep a null reference.
func (r *Repository) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// ListCustomers returns a page of customers ordered by name.
func (r *Repository) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	where, args := searchClause(filters.Search)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := filters.Page.Normalize()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY name, id LIMIT %d OFFSET %d`, customerColumns, where, page.Limit, page.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	customers, err := collect(rows, scanCustomer)
	return customers, total, err
}

// GetCustomer loads a customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

// FindCustomersByName returns customers whose name_key equals shared.NormalizeName(name).
func (r *Repository) FindCustomersByName(ctx context.Context, name string) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE name_key = $1 ORDER BY created_at, id LIMIT $2`, shared.NormalizeName(name), nameMatchLimit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCustomer)
}

// SaveCustomer inserts or updates a customer.
func (r *Repository) SaveCustomer(ctx context.Context, c Customer) (Customer, error) {
	saved, err := scanCustomer(r.pool.QueryRow(ctx, `INSERT INTO customers (id, name, name_key, contact_number, address, credit_limit, outstanding_balance, created_at, updated_at)
VALUES ($1,$2,$7,$3,$4,$5,$6,NOW(),NOW())
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, name_key=EXCLUDED.name_key, contact_number=EXCLUDED.contact_number, address=EXCLUDED.address,
credit_limit=EXCLUDED.credit_limit, outstanding_balance=EXCLUDED.outstanding_balance, updated_at=NOW()
RETURNING `+customerColumns, c.ID, c.Name, c.ContactNumber, c.Address, c.CreditLimit, c.OutstandingBalance, shared.NormalizeName(c.Name)))
	return saved, err
}

// DeleteCustomer removes a customer; sales keep a null reference.
func (r *Repository) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
