package recorder

import (
	"context"

	"github.com/google/uuid"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/shared"
)

// ProductResolver maps product references to products.
type ProductResolver interface {
	Resolve(ctx context.Context, ref string) (catalog.Resolution, error)
}

// PartyResolver maps supplier and customer references to ids.
type PartyResolver interface {
	ResolveSupplier(ctx context.Context, ref string) (parties.Match, error)
	ResolveCustomer(ctx context.Context, ref string) (parties.Match, error)
}

// RepositoryPort abstracts ledger persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filters SaleFilters) ([]Sale, int, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error)
	ListPurchases(ctx context.Context, filters PurchaseFilters) ([]Purchase, int, error)
	// LookupRequestKey returns shared.ErrIdempotencyUnknown when key was never claimed.
	LookupRequestKey(ctx context.Context, kind Kind, key string) (uuid.UUID, error)
}

// TxRepository exposes the transactional writes of one recording.
type TxRepository interface {
	// LockProducts loads the products and holds their row locks until the transaction ends.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
	// ClaimRequestKey returns shared.ErrIdempotencyConflict when key is already claimed.
	ClaimRequestKey(ctx context.Context, kind Kind, key string, ref uuid.UUID) error
	InsertSale(ctx context.Context, sale Sale) error
	InsertSaleItems(ctx context.Context, saleID uuid.UUID, items []SaleItem) error
	InsertPurchase(ctx context.Context, purchase Purchase) error
	InsertPurchaseItems(ctx context.Context, purchaseID uuid.UUID, items []PurchaseItem) error
	// UpdateProductStock returns catalog.ErrStockConflict when the stored quantity moved.
	UpdateProductStock(ctx context.Context, change catalog.StockChange) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Observer receives the outcome of every recording attempt.
type Observer interface {
	TransactionRecorded(kind, outcome string)
}

// Invalidator drops cached aggregates after stock or ledger changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// NumberSource issues document numbers.
type NumberSource interface {
	Next() string
}
