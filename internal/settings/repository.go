package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotSaved is returned by repositories before the first save.
var ErrNotSaved = errors.New("settings: not saved")

// Repository persists the settings row in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `store_name, address, phone, email, currency_symbol, low_stock_threshold, tax_rate, logo_url, updated_at`

// Get loads the settings row.
func (r *Repository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM store_settings WHERE id = 1`).Scan(
		&s.StoreName, &s.Address, &s.Phone, &s.Email, &s.CurrencySymbol, &s.LowStockThreshold, &s.TaxRate, &s.LogoURL, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotSaved
	}
	return s, err
}

// Save upserts the settings row.
func (r *Repository) Save(ctx context.Context, s Settings) (Settings, error) {
	var out Settings
	err := r.pool.QueryRow(ctx, `INSERT INTO store_settings (id, store_name, address, phone, email, currency_symbol, low_stock_threshold, tax_rate, logo_url, updated_at)
VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (id) DO UPDATE SET store_name=EXCLUDED.store_name, address=EXCLUDED.address, phone=EXCLUDED.phone, email=EXCLUDED.email,
currency_symbol=EXCLUDED.currency_symbol, low_stock_threshold=EXCLUDED.low_stock_threshold, tax_rate=EXCLUDED.tax_rate,
logo_url=EXCLUDED.logo_url, updated_at=NOW()
RETURNING `+columns,
		s.StoreName, s.Address, s.Phone, s.Email, s.CurrencySymbol, s.LowStockThreshold, s.TaxRate, s.LogoURL).Scan(
		&out.StoreName, &out.Address, &out.Phone, &out.Email, &out.CurrencySymbol, &out.LowStockThreshold, &out.TaxRate, &out.LogoURL, &out.UpdatedAt)
	return out, err
}
