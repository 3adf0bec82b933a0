package parties

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// Supplier is a vendor products are bought from.
type Supplier struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	ContactNumber      *string         `json:"contact_number,omitempty"`
	Email              *string         `json:"email,omitempty"`
	Address            *string         `json:"address,omitempty"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SupplierInput is the editable supplier payload.
type SupplierInput struct {
	Name               string          `json:"name" validate:"required,max=200"`
	ContactNumber      *string         `json:"contact_number,omitempty" validate:"omitempty,max=50"`
	Email              *string         `json:"email,omitempty" validate:"omitempty,email"`
	Address            *string         `json:"address,omitempty" validate:"omitempty,max=500"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// Customer is a buyer that may purchase on credit.
type Customer struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	ContactNumber      *string         `json:"contact_number,omitempty"`
	Address            *string         `json:"address,omitempty"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CustomerInput is the editable customer payload.
type CustomerInput struct {
	Name               string          `json:"name" validate:"required,max=200"`
	ContactNumber      *string         `json:"contact_number,omitempty" validate:"omitempty,max=50"`
	Address            *string         `json:"address,omitempty" validate:"omitempty,max=500"`
	CreditLimit        decimal.Decimal `json:"credit_limit" validate:"gte=0"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// Kind names a party table.
type Kind string

const (
	// KindSupplier selects suppliers.
	KindSupplier Kind = "supplier"
	// KindCustomer selects customers.
	KindCustomer Kind = "customer"
)

// Match is the typed result of resolving a party reference.
type Match struct {
	Kind      Kind                    `json:"kind"`
	Status    shared.ResolutionStatus `json:"status"`
	Reference string                  `json:"reference"`
	ID        *uuid.UUID              `json:"id,omitempty"`
	Name      string                  `json:"name,omitempty"`
	Matches   int                     `json:"matches"`
}

// ListFilters narrows party listings.
type ListFilters struct {
	Search string
	Page   shared.PageRequest
}

var (
	// ErrSupplierNotFound indicates the supplier does not exist.
	ErrSupplierNotFound = fmt.Errorf("parties: supplier %w", shared.ErrNotFound)
	// ErrCustomerNotFound indicates the customer does not exist.
	ErrCustomerNotFound = fmt.Errorf("parties: customer %w", shared.ErrNotFound)
)
