// Command seed loads a demo store: settings, suppliers, customers, products,
// an opening purchase, a few sales and expenses. Sales and purchases go
// through the recorder with fixed request keys, so reruns replay instead of
// duplicating stock movements.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/app"
	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/expenses"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/platform/db"
	"github.com/storekeep/storekeep/internal/recorder"
	"github.com/storekeep/storekeep/internal/settings"
	"github.com/storekeep/storekeep/internal/shared"
)

const seedActor = "seed"

type services struct {
	settings *settings.Service
	catalog  *catalog.Service
	parties  *parties.Service
	recorder *recorder.Service
	expenses *expenses.Service
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := shared.ContextWithActor(context.Background(), seedActor)

	if err := db.Migrate(cfg.PGDSN, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	svc := services{settings: settings.NewService(settings.NewRepository(pool), logger)}
	svc.catalog = catalog.NewService(catalog.NewRepository(pool), svc.settings, logger)
	svc.parties = parties.NewService(parties.NewRepository(pool))
	svc.recorder = recorder.NewService(recorder.NewRepository(pool), svc.catalog, svc.parties, recorder.Options{
		Audit:  shared.NewAuditLogger(pool),
		Logger: logger,
	})
	svc.expenses = expenses.NewService(expenses.NewRepository(pool), nil, logger)

	steps := []struct {
		name string
		run  func(context.Context, services) error
	}{
		{"settings", seedSettings},
		{"suppliers", seedSuppliers},
		{"customers", seedCustomers},
		{"products", seedProducts},
		{"opening purchase", seedPurchase},
		{"sales", seedSales},
		{"expenses", seedExpenses},
	}
	for _, step := range steps {
		fmt.Printf("→ Seeding %s...\n", step.name)
		if err := step.run(ctx, svc); err != nil {
			log.Fatalf("seed %s: %v", step.name, err)
		}
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func ptr(s string) *string { return &s }

func seedSettings(ctx context.Context, svc services) error {
	_, err := svc.settings.Update(ctx, settings.Input{
		StoreName:         "Corner Store",
		Address:           ptr("12 Market Road"),
		Phone:             ptr("+91 98450 00000"),
		Email:             ptr("owner@cornerstore.test"),
		CurrencySymbol:    "₹",
		LowStockThreshold: decimal.NewFromInt(10),
		TaxRate:           decimal.NewFromInt(5),
	})
	return err
}

func seedSuppliers(ctx context.Context, svc services) error {
	for _, in := range []parties.SupplierInput{
		{Name: "Acme Traders", ContactNumber: ptr("080-2222-1111"), Email: ptr("sales@acme.test")},
		{Name: "Fresh Dairy Co", ContactNumber: ptr("080-3333-4444")},
	} {
		match, err := svc.parties.ResolveSupplier(ctx, in.Name)
		if err != nil {
			return err
		}
		if match.Status != shared.NotFound {
			continue
		}
		if _, err := svc.parties.CreateSupplier(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedCustomers(ctx context.Context, svc services) error {
	for _, in := range []parties.CustomerInput{
		{Name: "Asha", ContactNumber: ptr("98450 11111"), CreditLimit: decimal.NewFromInt(2000)},
		{Name: "Ravi", CreditLimit: decimal.NewFromInt(500)},
	} {
		match, err := svc.parties.ResolveCustomer(ctx, in.Name)
		if err != nil {
			return err
		}
		if match.Status != shared.NotFound {
			continue
		}
		if _, err := svc.parties.CreateCustomer(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedProducts(ctx context.Context, svc services) error {
	products := []catalog.ProductInput{
		{Name: "Rice 5kg", Category: ptr("Staples"), Unit: "bag", BuyingPrice: decimal.NewFromInt(260), SellingPrice: decimal.NewFromInt(300)},
		{Name: "Toor Dal", Category: ptr("Staples"), Unit: "kg", BuyingPrice: decimal.NewFromInt(120), SellingPrice: decimal.NewFromInt(140)},
		{Name: "Milk 1L", Category: ptr("Dairy"), Unit: "pc", BuyingPrice: decimal.NewFromInt(48), SellingPrice: decimal.NewFromInt(56)},
		{Name: "Sugar", Category: ptr("Staples"), Unit: "kg", BuyingPrice: decimal.NewFromInt(40), SellingPrice: decimal.NewFromInt(46)},
		{Name: "Tea 250g", Category: ptr("Beverages"), Unit: "pc", BuyingPrice: decimal.NewFromInt(110), SellingPrice: decimal.NewFromInt(135)},
	}
	for _, in := range products {
		if _, err := svc.catalog.Create(ctx, in); err != nil && !errors.Is(err, catalog.ErrDuplicateName) {
			return err
		}
	}
	return nil
}

func cost(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func seedPurchase(ctx context.Context, svc services) error {
	_, err := svc.recorder.RecordPurchase(ctx, recorder.PurchaseInput{
		Supplier:      "Acme Traders",
		InvoiceNumber: ptr("ACME-0001"),
		PaymentType:   recorder.PaymentBank,
		RequestKey:    "seed:purchase:opening",
		Items: []recorder.PurchaseLineInput{
			{Product: "Rice 5kg", Quantity: decimal.NewFromInt(40), UnitCost: cost(255)},
			{Product: "Toor Dal", Quantity: decimal.NewFromInt(25), UnitCost: cost(118)},
			{Product: "Milk 1L", Quantity: decimal.NewFromInt(60), UnitCost: cost(47)},
			{Product: "Sugar", Quantity: decimal.NewFromInt(30), UnitCost: cost(39)},
			{Product: "Tea 250g", Quantity: decimal.NewFromInt(8), UnitCost: cost(108)},
		},
	})
	return err
}

func seedSales(ctx context.Context, svc services) error {
	sales := []recorder.SaleInput{
		{Customer: "Asha", PaymentType: recorder.PaymentUPI, Items: []recorder.SaleLineInput{
			{Product: "Rice 5kg", Quantity: decimal.NewFromInt(1)},
			{Product: "Milk 1L", Quantity: decimal.NewFromInt(2)},
		}},
		{PaymentType: recorder.PaymentCash, Items: []recorder.SaleLineInput{
			{Product: "Sugar", Quantity: decimal.RequireFromString("1.5")},
			{Product: "Tea 250g", Quantity: decimal.NewFromInt(1)},
		}},
		{Customer: "Ravi", PaymentType: recorder.PaymentCredit, Items: []recorder.SaleLineInput{
			{Product: "Toor Dal", Quantity: decimal.NewFromInt(2)},
		}},
	}
	for i, in := range sales {
		in.RequestKey = fmt.Sprintf("seed:sale:%d", i+1)
		if _, err := svc.recorder.RecordSale(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func seedExpenses(ctx context.Context, svc services) error {
	existing, _, _, err := svc.expenses.List(ctx, expenses.Filters{Page: shared.PageRequest{Page: 1, Limit: 1}})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, in := range []expenses.Input{
		{Type: expenses.TypeRent, Description: "Shop rent", Amount: decimal.NewFromInt(15000), PaymentMethod: expenses.MethodBank},
		{Type: expenses.TypeElectricity, Description: "Electricity bill", Amount: decimal.RequireFromString("2340.50")},
	} {
		if _, err := svc.expenses.Create(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
