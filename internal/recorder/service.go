package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/shared"
)

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxAttempts bounds how often a transaction aborted by a concurrent
	// writer is re-run. Non-conflict failures are never re-run.
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between re-runs.
	RetryBackoff time.Duration
	// ResolveParallel bounds concurrent product lookups per call.
	ResolveParallel int
}

// Options carries the optional collaborators of Service.
type Options struct {
	Audit           AuditPort
	Observer        Observer
	Invalidator     Invalidator
	BillNumbers     NumberSource
	PurchaseNumbers NumberSource
	Logger          *slog.Logger
	Config          ServiceConfig
}

// Service records sales and purchases as atomic units of header, line items
// and product stock changes.
type Service struct {
	repo        RepositoryPort
	products    ProductResolver
	parties     PartyResolver
	audit       AuditPort
	observer    Observer
	invalidator Invalidator
	bills       NumberSource
	references  NumberSource
	logger      *slog.Logger
	cfg         ServiceConfig
	clock       func() time.Time
}

const (
	outcomeRecorded = "recorded"
	outcomeReplayed = "replayed"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductResolver, partyResolver PartyResolver, opts Options) *Service {
	cfg := opts.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 20 * time.Millisecond
	}
	if cfg.ResolveParallel <= 0 {
		cfg.ResolveParallel = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bills := opts.BillNumbers
	if bills == nil {
		bills = shared.NewNumberGenerator("BILL")
	}
	refs := opts.PurchaseNumbers
	if refs == nil {
		refs = shared.NewNumberGenerator("PUR")
	}
	return &Service{
		repo:        repo,
		products:    products,
		parties:     partyResolver,
		audit:       opts.Audit,
		observer:    opts.Observer,
		invalidator: opts.Invalidator,
		bills:       bills,
		references:  refs,
		logger:      logger,
		cfg:         cfg,
		clock:       time.Now,
	}
}

// demand aggregates every line that touches one product.
type demand struct {
	productID uuid.UUID
	name      string
	firstLine int
	total     decimal.Decimal
	lastCost  decimal.Decimal
}

// RecordSale validates and persists a sale, decrementing stock for every line.
// Either the header, every item and every stock change commit together or
// nothing is written.
func (s *Service) RecordSale(ctx context.Context, input SaleInput) (receipt SaleReceipt, err error) {
	defer func() { s.observe(KindSale, err, receipt.Replayed) }()

	if err := validateSale(input); err != nil {
		return SaleReceipt{}, err
	}
	key := strings.TrimSpace(input.RequestKey)
	if key != "" {
		if replay, ok, err := s.replaySale(ctx, key); err != nil || ok {
			return replay, err
		}
	}

	refs := make([]string, len(input.Items))
	for i, item := range input.Items {
		refs[i] = strings.TrimSpace(item.Product)
	}
	var (
		products   []catalog.Product
		customerID *uuid.UUID
		warning    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		customerID, warning = s.resolveParty(gctx, parties.KindCustomer, input.Customer)
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = s.resolveProducts(gctx, refs)
		return err
	})
	if err := g.Wait(); err != nil {
		return SaleReceipt{}, err
	}

	sale := Sale{
		SaleDate:    s.dateOrNow(input.SaleDate),
		PaymentType: paymentOrDefault(input.PaymentType),
		CustomerID:  customerID,
		Notes:       trimmed(input.Notes),
		CreatedBy:   s.actor(ctx, input.Actor),
		TotalAmount: decimal.Zero,
	}
	if key != "" {
		sale.RequestKey = &key
	}
	items := make([]SaleItem, len(input.Items))
	for i, in := range input.Items {
		price := products[i].SellingPrice
		if in.UnitPrice.Valid {
			price = in.UnitPrice.Decimal
		}
		lineTotal := in.Quantity.Mul(price)
		items[i] = SaleItem{
			LineNo:      i + 1,
			ProductID:   products[i].ID,
			ProductName: products[i].Name,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
		}
		sale.TotalAmount = sale.TotalAmount.Add(lineTotal)
	}
	demands := aggregate(products, lineQuantities(items), nil)

	snapshot := make(map[uuid.UUID]decimal.Decimal, len(demands))
	for _, p := range products {
		snapshot[p.ID] = p.Quantity
	}
	if err := checkStock(products, lineQuantities(items), demands, snapshot); err != nil {
		return SaleReceipt{}, err
	}

	var levels []StockLevel
	err = s.commit(ctx, KindSale, func(ctx context.Context, tx TxRepository) error {
		sale.ID = uuid.New()
		sale.BillNumber = s.bills.Next()
		for i := range items {
			items[i].ID = uuid.New()
			items[i].SaleID = sale.ID
		}
		if key != "" {
			if err := tx.ClaimRequestKey(ctx, KindSale, key, sale.ID); err != nil {
				return claimError(err)
			}
		}
		locked, err := s.lock(ctx, tx, demands, refs)
		if err != nil {
			return err
		}
		available := make(map[uuid.UUID]decimal.Decimal, len(locked))
		for id, p := range locked {
			available[id] = p.Quantity
		}
		if err := checkStock(products, lineQuantities(items), demands, available); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return persistence("insert sale header", err)
		}
		if err := tx.InsertSaleItems(ctx, sale.ID, items); err != nil {
			return persistence("insert sale items", err)
		}
		levels = levels[:0]
		for _, d := range demands {
			before := available[d.productID]
			after := before.Sub(d.total)
			change := catalog.StockChange{ProductID: d.productID, ExpectedQuantity: before, NewQuantity: after}
			if err := tx.UpdateProductStock(ctx, change); err != nil {
				return persistence("update product stock", err)
			}
			levels = append(levels, StockLevel{ProductID: d.productID, ProductName: d.name, Before: before, After: after})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			replay, _, rerr := s.replaySale(ctx, key)
			return replay, rerr
		}
		return SaleReceipt{}, finalError(err)
	}

	sale.Items = items
	sale.ItemCount = len(items)
	receipt = SaleReceipt{Sale: sale, Stock: levels}
	if warning != "" {
		receipt.Warnings = append(receipt.Warnings, warning)
	}
	s.logger.Info("sale recorded",
		slog.String("sale_id", sale.ID.String()),
		slog.String("bill_number", sale.BillNumber),
		slog.String("total", sale.TotalAmount.String()),
		slog.Int("items", len(items)),
	)
	s.afterCommit(ctx, KindSale, sale.ID, sale.CreatedBy, map[string]any{
		"bill_number": sale.BillNumber,
		"total":       sale.TotalAmount.String(),
		"items":       len(items),
	})
	return receipt, nil
}

// RecordPurchase validates and persists a purchase, incrementing stock for
// every line and overwriting each product's buying price with the unit cost
// of its last line.
func (s *Service) RecordPurchase(ctx context.Context, input PurchaseInput) (receipt PurchaseReceipt, err error) {
	defer func() { s.observe(KindPurchase, err, receipt.Replayed) }()

	if err := validatePurchase(input); err != nil {
		return PurchaseReceipt{}, err
	}
	key := strings.TrimSpace(input.RequestKey)
	if key != "" {
		if replay, ok, err := s.replayPurchase(ctx, key); err != nil || ok {
			return replay, err
		}
	}

	refs := make([]string, len(input.Items))
	for i, item := range input.Items {
		refs[i] = strings.TrimSpace(item.Product)
	}
	var (
		products   []catalog.Product
		supplierID *uuid.UUID
		warning    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		supplierID, warning = s.resolveParty(gctx, parties.KindSupplier, input.Supplier)
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = s.resolveProducts(gctx, refs)
		return err
	})
	if err := g.Wait(); err != nil {
		return PurchaseReceipt{}, err
	}

	purchase := Purchase{
		InvoiceNumber: trimmed(input.InvoiceNumber),
		PurchaseDate:  s.dateOrNow(input.PurchaseDate),
		PaymentType:   paymentOrDefault(input.PaymentType),
		SupplierID:    supplierID,
		Notes:         trimmed(input.Notes),
		CreatedBy:     s.actor(ctx, input.Actor),
		TotalAmount:   decimal.Zero,
	}
	if key != "" {
		purchase.RequestKey = &key
	}
	items := make([]PurchaseItem, len(input.Items))
	costs := make([]decimal.Decimal, len(input.Items))
	for i, in := range input.Items {
		cost := in.UnitCost.Decimal
		lineTotal := in.Quantity.Mul(cost)
		items[i] = PurchaseItem{
			LineNo:      i + 1,
			ProductID:   products[i].ID,
			ProductName: products[i].Name,
			Quantity:    in.Quantity,
			UnitCost:    cost,
			LineTotal:   lineTotal,
		}
		costs[i] = cost
		purchase.TotalAmount = purchase.TotalAmount.Add(lineTotal)
	}
	quantities := make([]decimal.Decimal, len(items))
	for i, it := range items {
		quantities[i] = it.Quantity
	}
	demands := aggregate(products, quantities, costs)

	var levels []StockLevel
	err = s.commit(ctx, KindPurchase, func(ctx context.Context, tx TxRepository) error {
		purchase.ID = uuid.New()
		purchase.ReferenceNumber = s.references.Next()
		for i := range items {
			items[i].ID = uuid.New()
			items[i].PurchaseID = purchase.ID
		}
		if key != "" {
			if err := tx.ClaimRequestKey(ctx, KindPurchase, key, purchase.ID); err != nil {
				return claimError(err)
			}
		}
		locked, err := s.lock(ctx, tx, demands, refs)
		if err != nil {
			return err
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return persistence("insert purchase header", err)
		}
		if err := tx.InsertPurchaseItems(ctx, purchase.ID, items); err != nil {
			return persistence("insert purchase items", err)
		}
		levels = levels[:0]
		for _, d := range demands {
			before := locked[d.productID].Quantity
			after := before.Add(d.total)
			cost := d.lastCost
			change := catalog.StockChange{ProductID: d.productID, ExpectedQuantity: before, NewQuantity: after, NewBuyingPrice: &cost}
			if err := tx.UpdateProductStock(ctx, change); err != nil {
				return persistence("update product stock", err)
			}
			levels = append(levels, StockLevel{ProductID: d.productID, ProductName: d.name, Before: before, After: after, BuyingPrice: &cost})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			replay, _, rerr := s.replayPurchase(ctx, key)
			return replay, rerr
		}
		return PurchaseReceipt{}, finalError(err)
	}

	purchase.Items = items
	purchase.ItemCount = len(items)
	receipt = PurchaseReceipt{Purchase: purchase, Stock: levels}
	if warning != "" {
		receipt.Warnings = append(receipt.Warnings, warning)
	}
	s.logger.Info("purchase recorded",
		slog.String("purchase_id", purchase.ID.String()),
		slog.String("reference_number", purchase.ReferenceNumber),
		slog.String("total", purchase.TotalAmount.String()),
		slog.Int("items", len(items)),
	)
	s.afterCommit(ctx, KindPurchase, purchase.ID, purchase.CreatedBy, map[string]any{
		"reference_number": purchase.ReferenceNumber,
		"total":            purchase.TotalAmount.String(),
		"items":            len(items),
	})
	return receipt, nil
}

// GetSale returns a sale with its items.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns a page of sale headers, newest first.
func (s *Service) ListSales(ctx context.Context, filters SaleFilters) ([]Sale, shared.Pagination, error) {
	filters.Page = filters.Page.Normalize()
	sales, total, err := s.repo.ListSales(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return sales, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), nil
}

// GetPurchase returns a purchase with its items.
func (s *Service) GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases returns a page of purchase headers, newest first.
func (s *Service) ListPurchases(ctx context.Context, filters PurchaseFilters) ([]Purchase, shared.Pagination, error) {
	filters.Page = filters.Page.Normalize()
	purchases, total, err := s.repo.ListPurchases(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return purchases, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), nil
}

// resolveProducts looks every reference up concurrently and fails on the
// first line, in line order, that does not resolve to exactly one product.
func (s *Service) resolveProducts(ctx context.Context, refs []string) ([]catalog.Product, error) {
	results := make([]catalog.Resolution, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResolveParallel)
	for i, ref := range refs {
		g.Go(func() error {
			res, err := s.products.Resolve(gctx, ref)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, persistence("resolve products", err)
	}
	products := make([]catalog.Product, len(refs))
	for i, res := range results {
		switch {
		case res.Status == shared.Found && res.Product != nil:
			products[i] = *res.Product
		case res.Status == shared.Ambiguous:
			candidates := make([]Candidate, 0, len(res.Candidates))
			for _, c := range res.Candidates {
				candidates = append(candidates, Candidate{ID: c.ID, Name: c.Name})
			}
			return nil, &AmbiguousProductError{Line: i, Reference: refs[i], Candidates: candidates}
		default:
			return nil, &ProductNotFoundError{Line: i, Reference: refs[i]}
		}
	}
	return products, nil
}

// resolveParty links a supplier or customer when the reference matches
// exactly one; anything else yields a nil reference and a warning.
func (s *Service) resolveParty(ctx context.Context, kind parties.Kind, ref string) (*uuid.UUID, string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ""
	}
	logger := s.logger.With(slog.String("kind", string(kind)), slog.String("reference", ref))
	if s.parties == nil {
		logger.Warn("party directory unavailable, recording without reference")
		return nil, fmt.Sprintf("%s %q not linked", kind, ref)
	}
	var (
		m   parties.Match
		err error
	)
	if kind == parties.KindSupplier {
		m, err = s.parties.ResolveSupplier(ctx, ref)
	} else {
		m, err = s.parties.ResolveCustomer(ctx, ref)
	}
	if err != nil {
		logger.Warn("party lookup failed, recording without reference", slog.Any("error", err))
		return nil, fmt.Sprintf("%s %q could not be looked up and was not linked", kind, ref)
	}
	switch m.Status {
	case shared.Found:
		return m.ID, ""
	case shared.Ambiguous:
		logger.Warn("party reference ambiguous, recording without reference", slog.Int("matches", m.Matches))
		return nil, fmt.Sprintf("%s %q matches %d records and was not linked", kind, ref, m.Matches)
	default:
		logger.Warn("party not found, recording without reference")
		return nil, fmt.Sprintf("%s %q not found and was not linked", kind, ref)
	}
}

func (s *Service) lock(ctx context.Context, tx TxRepository, demands []demand, refs []string) (map[uuid.UUID]catalog.Product, error) {
	ids := make([]uuid.UUID, len(demands))
	for i, d := range demands {
		ids[i] = d.productID
	}
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, persistence("lock products", err)
	}
	for _, d := range demands {
		if _, ok := locked[d.productID]; !ok {
			return nil, &ProductNotFoundError{Line: d.firstLine, Reference: refs[d.firstLine]}
		}
	}
	return locked, nil
}

func (s *Service) commit(ctx context.Context, kind Kind, work func(context.Context, TxRepository) error) error {
	for attempt := 1; ; attempt++ {
		err := s.repo.WithTx(ctx, work)
		if err == nil {
			return nil
		}
		if !isConflict(err) || attempt >= s.cfg.MaxAttempts {
			return err
		}
		s.logger.Warn("transaction conflict, retrying",
			slog.String("kind", string(kind)),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		timer := time.NewTimer(time.Duration(attempt) * s.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return persistence("retry wait", ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Service) replaySale(ctx context.Context, key string) (SaleReceipt, bool, error) {
	id, err := s.repo.LookupRequestKey(ctx, KindSale, key)
	if errors.Is(err, shared.ErrIdempotencyUnknown) {
		return SaleReceipt{}, false, nil
	}
	if err != nil {
		return SaleReceipt{}, false, persistence("lookup request key", err)
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return SaleReceipt{}, false, persistence("load recorded sale", err)
	}
	s.logger.Info("sale replayed", slog.String("sale_id", sale.ID.String()), slog.String("request_key", key))
	return SaleReceipt{Sale: sale, Replayed: true}, true, nil
}

func (s *Service) replayPurchase(ctx context.Context, key string) (PurchaseReceipt, bool, error) {
	id, err := s.repo.LookupRequestKey(ctx, KindPurchase, key)
	if errors.Is(err, shared.ErrIdempotencyUnknown) {
		return PurchaseReceipt{}, false, nil
	}
	if err != nil {
		return PurchaseReceipt{}, false, persistence("lookup request key", err)
	}
	purchase, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return PurchaseReceipt{}, false, persistence("load recorded purchase", err)
	}
	s.logger.Info("purchase replayed", slog.String("purchase_id", purchase.ID.String()), slog.String("request_key", key))
	return PurchaseReceipt{Purchase: purchase, Replayed: true}, true, nil
}

func (s *Service) afterCommit(ctx context.Context, kind Kind, id uuid.UUID, actor *string, meta map[string]any) {
	if s.audit != nil {
		log := shared.AuditLog{
			Action:   fmt.Sprintf("%s:record", kind),
			Entity:   string(kind),
			EntityID: id.String(),
			Meta:     meta,
		}
		if actor != nil {
			log.Actor = *actor
		}
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", slog.String("kind", string(kind)), slog.Any("error", err))
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
		}
	}
}

func (s *Service) observe(kind Kind, err error, replayed bool) {
	if s.observer == nil {
		return
	}
	outcome := outcomeRecorded
	switch {
	case err == nil && replayed:
		outcome = outcomeReplayed
	case err == nil:
	case isDomainError(err):
		outcome = outcomeRejected
	default:
		outcome = outcomeFailed
	}
	s.observer.TransactionRecorded(string(kind), outcome)
}

func (s *Service) actor(ctx context.Context, explicit string) *string {
	actor := strings.TrimSpace(explicit)
	if actor == "" {
		actor = shared.ActorFromContext(ctx)
	}
	if actor == "" {
		return nil
	}
	return &actor
}

func (s *Service) dateOrNow(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return s.clock().UTC()
	}
	return t.UTC()
}

// aggregate groups line quantities per product in order of first appearance.
// costs may be nil; otherwise the last line's cost wins per product.
func aggregate(products []catalog.Product, quantities []decimal.Decimal, costs []decimal.Decimal) []demand {
	index := make(map[uuid.UUID]int, len(products))
	demands := make([]demand, 0, len(products))
	for i, p := range products {
		pos, seen := index[p.ID]
		if !seen {
			pos = len(demands)
			index[p.ID] = pos
			demands = append(demands, demand{productID: p.ID, name: p.Name, firstLine: i, total: decimal.Zero})
		}
		demands[pos].total = demands[pos].total.Add(quantities[i])
		if costs != nil {
			demands[pos].lastCost = costs[i]
		}
	}
	return demands
}

// checkStock walks lines in order and fails on the first line at which the
// running quantity for its product exceeds what is available.
func checkStock(products []catalog.Product, quantities []decimal.Decimal, demands []demand, available map[uuid.UUID]decimal.Decimal) error {
	totals := make(map[uuid.UUID]decimal.Decimal, len(demands))
	for _, d := range demands {
		totals[d.productID] = d.total
	}
	running := make(map[uuid.UUID]decimal.Decimal, len(demands))
	for i, p := range products {
		sum := running[p.ID].Add(quantities[i])
		running[p.ID] = sum
		if sum.GreaterThan(available[p.ID]) {
			return &InsufficientStockError{
				Line:        i,
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   totals[p.ID],
				Available:   available[p.ID],
			}
		}
	}
	return nil
}

func lineQuantities(items []SaleItem) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	for i, it := range items {
		out[i] = it.Quantity
	}
	return out
}

func claimError(err error) error {
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return err
	}
	return persistence("claim request key", err)
}

func finalError(err error) error {
	if isDomainError(err) {
		return err
	}
	return persistence("commit transaction", err)
}

func paymentOrDefault(p PaymentType) PaymentType {
	if p == "" {
		return PaymentCash
	}
	return p
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
