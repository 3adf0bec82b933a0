package recorder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/shared"
)

const maxLines = 500

func validateSale(in SaleInput) error {
	verr := &shared.ValidationError{}
	validatePayment(verr, in.PaymentType)
	validateLineCount(verr, len(in.Items))
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		validateLine(verr, prefix, item.Product, item.Quantity)
		if item.UnitPrice.Valid {
			validateAmount(verr, prefix+".unit_price", item.UnitPrice.Decimal)
		}
	}
	return verr.Err()
}

func validatePurchase(in PurchaseInput) error {
	verr := &shared.ValidationError{}
	validatePayment(verr, in.PaymentType)
	validateLineCount(verr, len(in.Items))
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		validateLine(verr, prefix, item.Product, item.Quantity)
		if !item.UnitCost.Valid {
			verr.Add(prefix+".unit_cost", "is required")
			continue
		}
		validateAmount(verr, prefix+".unit_cost", item.UnitCost.Decimal)
	}
	return verr.Err()
}

func validatePayment(verr *shared.ValidationError, p PaymentType) {
	if p != "" && !p.Valid() {
		verr.Add("payment_type", "must be one of cash, upi, credit or bank")
	}
}

func validateLineCount(verr *shared.ValidationError, n int) {
	switch {
	case n == 0:
		verr.Add("items", "at least one item is required")
	case n > maxLines:
		verr.Add("items", "must not exceed %d lines", maxLines)
	}
}

func validateLine(verr *shared.ValidationError, prefix, product string, qty decimal.Decimal) {
	if strings.TrimSpace(product) == "" {
		verr.Add(prefix+".product", "is required")
	}
	switch {
	case !qty.IsPositive():
		verr.Add(prefix+".quantity", "must be greater than 0")
	case !shared.FitsScale(qty, catalog.QuantityScale):
		verr.Add(prefix+".quantity", "must have at most %d decimal places", catalog.QuantityScale)
	}
}

func validateAmount(verr *shared.ValidationError, field string, amount decimal.Decimal) {
	switch {
	case amount.IsNegative():
		verr.Add(field, "must not be negative")
	case !shared.FitsScale(amount, catalog.PriceScale):
		verr.Add(field, "must have at most %d decimal places", catalog.PriceScale)
	}
}
