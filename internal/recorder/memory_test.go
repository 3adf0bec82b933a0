package recorder

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/shared"
)

// memoryStore is an in-memory ledger. Transactions are serialized and rolled
// back by restoring a snapshot.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products      map[uuid.UUID]catalog.Product
	sales         map[uuid.UUID]Sale
	saleItems     map[uuid.UUID][]SaleItem
	purchases     map[uuid.UUID]Purchase
	purchaseItems map[uuid.UUID][]PurchaseItem
	keys          map[string]uuid.UUID

	failItems      error
	stockConflicts int
	txCount        int
}

func newMemoryStore(products ...catalog.Product) *memoryStore {
	s := &memoryStore{
		products:      make(map[uuid.UUID]catalog.Product),
		sales:         make(map[uuid.UUID]Sale),
		saleItems:     make(map[uuid.UUID][]SaleItem),
		purchases:     make(map[uuid.UUID]Purchase),
		purchaseItems: make(map[uuid.UUID][]PurchaseItem),
		keys:          make(map[string]uuid.UUID),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

type memorySnapshot struct {
	products      map[uuid.UUID]catalog.Product
	sales         map[uuid.UUID]Sale
	saleItems     map[uuid.UUID][]SaleItem
	purchases     map[uuid.UUID]Purchase
	purchaseItems map[uuid.UUID][]PurchaseItem
	keys          map[string]uuid.UUID
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memorySnapshot{
		products:      cloneMap(s.products),
		sales:         cloneMap(s.sales),
		saleItems:     cloneMap(s.saleItems),
		purchases:     cloneMap(s.purchases),
		purchaseItems: cloneMap(s.purchaseItems),
		keys:          cloneMap(s.keys),
	}
}

func (s *memoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.sales = snap.sales
	s.saleItems = snap.saleItems
	s.purchases = snap.purchases
	s.purchaseItems = snap.purchaseItems
	s.keys = snap.keys
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memoryStore) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	sale.Items = append([]SaleItem(nil), s.saleItems[id]...)
	sale.ItemCount = len(sale.Items)
	return sale, nil
}

func (s *memoryStore) ListSales(ctx context.Context, filters SaleFilters) ([]Sale, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Sale{}
	for _, sale := range s.sales {
		if filters.PaymentType != "" && sale.PaymentType != filters.PaymentType {
			continue
		}
		sale.ItemCount = len(s.saleItems[sale.ID])
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].SaleDate.After(out[j].SaleDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return pageOf(out, filters.Page), len(out), nil
}

func (s *memoryStore) GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purchase, ok := s.purchases[id]
	if !ok {
		return Purchase{}, ErrPurchaseNotFound
	}
	purchase.Items = append([]PurchaseItem(nil), s.purchaseItems[id]...)
	purchase.ItemCount = len(purchase.Items)
	return purchase, nil
}

func (s *memoryStore) ListPurchases(ctx context.Context, filters PurchaseFilters) ([]Purchase, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Purchase{}
	for _, p := range s.purchases {
		if filters.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *filters.SupplierID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.After(out[j].PurchaseDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return pageOf(out, filters.Page), len(out), nil
}

func pageOf[T any](rows []T, page shared.PageRequest) []T {
	page = page.Normalize()
	start := min(page.Offset(), len(rows))
	end := min(start+page.Limit, len(rows))
	return rows[start:end]
}

func (s *memoryStore) LookupRequestKey(ctx context.Context, kind Kind, key string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[string(kind)+"/"+key]
	if !ok {
		return uuid.Nil, shared.ErrIdempotencyUnknown
	}
	return id, nil
}

func (s *memoryStore) product(id uuid.UUID) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memoryStore) setProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memoryStore) counts() (sales, purchases, keys int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales), len(s.purchases), len(s.keys)
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.store.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memoryTx) ClaimRequestKey(ctx context.Context, kind Kind, key string, ref uuid.UUID) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	k := string(kind) + "/" + key
	if _, exists := t.store.keys[k]; exists {
		return shared.ErrIdempotencyConflict
	}
	t.store.keys[k] = ref
	return nil
}

func (t *memoryTx) InsertSale(ctx context.Context, sale Sale) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, existing := range t.store.sales {
		if existing.BillNumber == sale.BillNumber {
			return ErrNumberCollision
		}
	}
	t.store.sales[sale.ID] = sale
	return nil
}

func (t *memoryTx) InsertSaleItems(ctx context.Context, saleID uuid.UUID, items []SaleItem) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failItems != nil {
		return t.store.failItems
	}
	t.store.saleItems[saleID] = append([]SaleItem(nil), items...)
	return nil
}

func (t *memoryTx) InsertPurchase(ctx context.Context, purchase Purchase) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.purchases[purchase.ID] = purchase
	return nil
}

func (t *memoryTx) InsertPurchaseItems(ctx context.Context, purchaseID uuid.UUID, items []PurchaseItem) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failItems != nil {
		return t.store.failItems
	}
	t.store.purchaseItems[purchaseID] = append([]PurchaseItem(nil), items...)
	return nil
}

func (t *memoryTx) UpdateProductStock(ctx context.Context, change catalog.StockChange) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.stockConflicts > 0 {
		t.store.stockConflicts--
		return catalog.ErrStockConflict
	}
	p, ok := t.store.products[change.ProductID]
	if !ok || !p.Quantity.Equal(change.ExpectedQuantity) {
		return catalog.ErrStockConflict
	}
	p.Quantity = change.NewQuantity
	if change.NewBuyingPrice != nil {
		p.BuyingPrice = *change.NewBuyingPrice
	}
	t.store.products[p.ID] = p
	return nil
}

// memoryResolver resolves references against the store's products the way
// the catalog does: ids first, then folded exact names.
type memoryResolver struct {
	store *memoryStore
	err   error
}

func (r memoryResolver) Resolve(ctx context.Context, ref string) (catalog.Resolution, error) {
	if r.err != nil {
		return catalog.Resolution{}, r.err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	res := catalog.Resolution{Reference: ref, Status: shared.NotFound}
	if id, err := uuid.Parse(ref); err == nil {
		if p, ok := r.store.products[id]; ok {
			res.Status = shared.Found
			res.Product = &p
		}
		return res, nil
	}
	var matches []catalog.Product
	for _, p := range r.store.products {
		if shared.SameName(p.Name, ref) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID.String() < matches[j].ID.String() })
	switch len(matches) {
	case 0:
	case 1:
		res.Status = shared.Found
		res.Product = &matches[0]
	default:
		res.Status = shared.Ambiguous
		res.Candidates = matches
	}
	return res, nil
}

type memoryParties struct {
	suppliers map[string]uuid.UUID
	customers map[string]uuid.UUID
	err       error
}

func (m memoryParties) match(kind parties.Kind, table map[string]uuid.UUID, ref string) (parties.Match, error) {
	if m.err != nil {
		return parties.Match{}, m.err
	}
	id, ok := table[ref]
	if !ok {
		return parties.Match{Kind: kind, Status: shared.NotFound, Reference: ref}, nil
	}
	return parties.Match{Kind: kind, Status: shared.Found, Reference: ref, ID: &id, Name: ref, Matches: 1}, nil
}

func (m memoryParties) ResolveSupplier(ctx context.Context, ref string) (parties.Match, error) {
	return m.match(parties.KindSupplier, m.suppliers, ref)
}

func (m memoryParties) ResolveCustomer(ctx context.Context, ref string) (parties.Match, error) {
	return m.match(parties.KindCustomer, m.customers, ref)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) TransactionRecorded(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, kind+":"+outcome)
}

type countingInvalidator struct {
	mu    sync.Mutex
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumps++
	return nil
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

var errDiskFull = errors.New("disk full")

func product(name string, qty, selling string) catalog.Product {
	return catalog.Product{
		ID:           uuid.New(),
		Name:         name,
		Unit:         "pcs",
		Quantity:     decimal.RequireFromString(qty),
		SellingPrice: decimal.RequireFromString(selling),
		BuyingPrice:  decimal.Zero,
		ReorderLevel: decimal.NewFromInt(10),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
