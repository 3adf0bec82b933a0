package expenses

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// Type classifies an expense.
type Type string

const (
	TypeRent        Type = "rent"
	TypeElectricity Type = "electricity"
	TypeWages       Type = "wages"
	TypeDelivery    Type = "delivery"
	TypeMisc        Type = "misc"
)

// Valid reports whether t is a known expense type.
func (t Type) Valid() bool {
	switch t {
	case TypeRent, TypeElectricity, TypeWages, TypeDelivery, TypeMisc:
		return true
	}
	return false
}

// Method is how an expense was paid.
type Method string

const (
	MethodCash Method = "cash"
	MethodUPI  Method = "upi"
	MethodBank Method = "bank"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodBank:
		return true
	}
	return false
}

// Expense is a recorded operating cost.
type Expense struct {
	ID            uuid.UUID       `json:"id"`
	Type          Type            `json:"expense_type"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          shared.Date     `json:"expense_date"`
	PaymentMethod Method          `json:"payment_method"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Input is the editable expense payload.
type Input struct {
	Type          Type            `json:"expense_type" validate:"required,oneof=rent electricity wages delivery misc"`
	Description   string          `json:"description" validate:"required,max=500"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Date          *shared.Date    `json:"expense_date,omitempty"`
	PaymentMethod Method          `json:"payment_method" validate:"omitempty,oneof=cash upi bank"`
}

// Filters narrows expense listings. To is exclusive.
type Filters struct {
	From time.Time
	To   time.Time
	Type Type
	Page shared.PageRequest
}

// Totals summarises expenses.
type Totals struct {
	Total     decimal.Decimal `json:"total"`
	ThisMonth decimal.Decimal `json:"this_month"`
}

// ErrExpenseNotFound is returned when an expense id does not exist.
var ErrExpenseNotFound = fmt.Errorf("expense %w", shared.ErrNotFound)
