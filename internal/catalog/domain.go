package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// Product is a sellable stock item.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Category     *string         `json:"category,omitempty"`
	Brand        *string         `json:"brand,omitempty"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	SKU          *string         `json:"sku,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LowStock reports whether quantity has fallen below the reorder level.
func (p Product) LowStock() bool {
	return p.Quantity.LessThan(p.ReorderLevel)
}

// ProductInput is the editable product payload for create and update.
type ProductInput struct {
	Name         string              `json:"name" validate:"required,max=200"`
	Category     *string             `json:"category,omitempty" validate:"omitempty,max=100"`
	Brand        *string             `json:"brand,omitempty" validate:"omitempty,max=100"`
	Unit         string              `json:"unit" validate:"omitempty,max=20"`
	Quantity     decimal.Decimal     `json:"quantity" validate:"gte=0"`
	BuyingPrice  decimal.Decimal     `json:"buying_price" validate:"gte=0"`
	SellingPrice decimal.Decimal     `json:"selling_price" validate:"gte=0"`
	SupplierID   *uuid.UUID          `json:"supplier_id,omitempty"`
	ReorderLevel decimal.NullDecimal `json:"reorder_level" validate:"omitempty,gte=0"`
	ExpiryDate   *shared.Date        `json:"expiry_date,omitempty"`
	SKU          *string             `json:"sku,omitempty" validate:"omitempty,max=64"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search       string
	Category     string
	LowStockOnly bool
	SortBy       string
	SortDir      string
	Page         shared.PageRequest
}

// StockChange is the quantity and optional buying price written for one
// product inside a recorder transaction.
type StockChange struct {
	ProductID        uuid.UUID
	ExpectedQuantity decimal.Decimal
	NewQuantity      decimal.Decimal
	NewBuyingPrice   *decimal.Decimal
}

// Resolution is the typed result of resolving a product reference.
type Resolution struct {
	Status     shared.ResolutionStatus `json:"status"`
	Reference  string                  `json:"reference"`
	Product    *Product                `json:"product,omitempty"`
	Candidates []Product               `json:"candidates,omitempty"`
}

// Scale limits accepted by the products table.
const (
	QuantityScale = 3
	PriceScale    = 2
)

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = fmt.Errorf("catalog: product %w", shared.ErrNotFound)
	// ErrDuplicateName indicates another product already uses the name.
	ErrDuplicateName = fmt.Errorf("catalog: product name already in use: %w", shared.ErrConflict)
	// ErrDuplicateSKU indicates another product already uses the SKU.
	ErrDuplicateSKU = fmt.Errorf("catalog: product sku already in use: %w", shared.ErrConflict)
	// ErrProductInUse indicates sales or purchases still reference the product.
	ErrProductInUse = fmt.Errorf("catalog: product referenced by recorded transactions: %w", shared.ErrConflict)
	// ErrStockConflict indicates the stored quantity changed under a compare-and-swap update.
	ErrStockConflict = errors.New("catalog: stock changed concurrently")
)
