package recorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// Kind distinguishes the two recorded transaction types.
type Kind string

const (
	// KindSale records goods leaving stock.
	KindSale Kind = "sale"
	// KindPurchase records goods entering stock.
	KindPurchase Kind = "purchase"
)

// PaymentType classifies how a transaction was settled.
type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentUPI    PaymentType = "upi"
	PaymentCredit PaymentType = "credit"
	PaymentBank   PaymentType = "bank"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentUPI, PaymentCredit, PaymentBank:
		return true
	}
	return false
}

// SaleLineInput is one requested sale line. UnitPrice defaults to the
// product's selling price when omitted.
type SaleLineInput struct {
	Product   string              `json:"product" validate:"required,max=200"`
	Quantity  decimal.Decimal     `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.NullDecimal `json:"unit_price" validate:"omitempty,gte=0"`
}

// SaleInput is the request to record a sale. ClientTotal is accepted and
// ignored; the total is always computed from the lines.
type SaleInput struct {
	SaleDate    *time.Time          `json:"sale_date,omitempty"`
	PaymentType PaymentType         `json:"payment_type" validate:"omitempty,oneof=cash upi credit bank"`
	Customer    string              `json:"customer,omitempty" validate:"max=200"`
	Notes       *string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items       []SaleLineInput     `json:"items" validate:"required,min=1,dive"`
	ClientTotal decimal.NullDecimal `json:"total_amount"`
	RequestKey  string              `json:"-"`
	Actor       string              `json:"-"`
}

// PurchaseLineInput is one requested purchase line.
type PurchaseLineInput struct {
	Product  string              `json:"product" validate:"required,max=200"`
	Quantity decimal.Decimal     `json:"quantity" validate:"gt=0"`
	UnitCost decimal.NullDecimal `json:"unit_cost" validate:"omitempty,gte=0"`
}

// PurchaseInput is the request to record a purchase. ClientTotal is ignored
// as for sales.
type PurchaseInput struct {
	PurchaseDate  *time.Time          `json:"purchase_date,omitempty"`
	PaymentType   PaymentType         `json:"payment_type" validate:"omitempty,oneof=cash upi credit bank"`
	Supplier      string              `json:"supplier,omitempty" validate:"max=200"`
	InvoiceNumber *string             `json:"invoice_number,omitempty" validate:"omitempty,max=100"`
	Notes         *string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items         []PurchaseLineInput `json:"items" validate:"required,min=1,dive"`
	ClientTotal   decimal.NullDecimal `json:"total_amount"`
	RequestKey    string              `json:"-"`
	Actor         string              `json:"-"`
}

// Sale is a persisted sale header with its items.
type Sale struct {
	ID          uuid.UUID       `json:"id"`
	BillNumber  string          `json:"bill_number"`
	SaleDate    time.Time       `json:"sale_date"`
	PaymentType PaymentType     `json:"payment_type"`
	CustomerID  *uuid.UUID      `json:"customer_id,omitempty"`
	Customer    *string         `json:"customer_name,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       *string         `json:"notes,omitempty"`
	CreatedBy   *string         `json:"created_by,omitempty"`
	RequestKey  *string         `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	ItemCount   int             `json:"item_count"`
	Items       []SaleItem      `json:"items,omitempty"`
}

// SaleItem is one persisted sale line.
type SaleItem struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      uuid.UUID       `json:"sale_id"`
	LineNo      int             `json:"line_no"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Purchase is a persisted purchase header with its items.
type Purchase struct {
	ID              uuid.UUID       `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	InvoiceNumber   *string         `json:"invoice_number,omitempty"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	PaymentType     PaymentType     `json:"payment_type"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
	Supplier        *string         `json:"supplier_name,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedBy       *string         `json:"created_by,omitempty"`
	RequestKey      *string         `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	ItemCount       int             `json:"item_count"`
	Items           []PurchaseItem  `json:"items,omitempty"`
}

// PurchaseItem is one persisted purchase line.
type PurchaseItem struct {
	ID          uuid.UUID       `json:"id"`
	PurchaseID  uuid.UUID       `json:"purchase_id"`
	LineNo      int             `json:"line_no"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// StockLevel reports a product's quantity before and after a recorded transaction.
type StockLevel struct {
	ProductID   uuid.UUID        `json:"product_id"`
	ProductName string           `json:"product_name"`
	Before      decimal.Decimal  `json:"quantity_before"`
	After       decimal.Decimal  `json:"quantity_after"`
	BuyingPrice *decimal.Decimal `json:"buying_price,omitempty"`
}

// SaleReceipt is the result of RecordSale.
type SaleReceipt struct {
	Sale     Sale         `json:"sale"`
	Stock    []StockLevel `json:"stock,omitempty"`
	Replayed bool         `json:"replayed"`
	Warnings []string     `json:"warnings,omitempty"`
}

// PurchaseReceipt is the result of RecordPurchase.
type PurchaseReceipt struct {
	Purchase Purchase     `json:"purchase"`
	Stock    []StockLevel `json:"stock,omitempty"`
	Replayed bool         `json:"replayed"`
	Warnings []string     `json:"warnings,omitempty"`
}

// SaleFilters narrows sale listings. To is exclusive.
type SaleFilters struct {
	From        time.Time
	To          time.Time
	PaymentType PaymentType
	CustomerID  *uuid.UUID
	Page        shared.PageRequest
}

// PurchaseFilters narrows purchase listings. To is exclusive.
type PurchaseFilters struct {
	From       time.Time
	To         time.Time
	SupplierID *uuid.UUID
	Page       shared.PageRequest
}
