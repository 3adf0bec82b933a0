package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the single store configuration row.
type Settings struct {
	StoreName         string          `json:"store_name"`
	Address           *string         `json:"address,omitempty"`
	Phone             *string         `json:"phone,omitempty"`
	Email             *string         `json:"email,omitempty"`
	CurrencySymbol    string          `json:"currency_symbol"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	LogoURL           *string         `json:"logo_url,omitempty"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
}

// Input is the editable settings payload.
type Input struct {
	StoreName         string          `json:"store_name" validate:"required,max=200"`
	Address           *string         `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone             *string         `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email             *string         `json:"email,omitempty" validate:"omitempty,email"`
	CurrencySymbol    string          `json:"currency_symbol" validate:"required,max=8"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold" validate:"gte=0"`
	TaxRate           decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	LogoURL           *string         `json:"logo_url,omitempty" validate:"omitempty,url"`
}

// Defaults returns the settings used until the store saves its own.
func Defaults() Settings {
	return Settings{
		StoreName:         "Storekeep",
		CurrencySymbol:    "₹",
		LowStockThreshold: decimal.NewFromInt(10),
		TaxRate:           decimal.Zero,
	}
}
