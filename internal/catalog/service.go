package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	FindByID(ctx context.Context, id uuid.UUID) (Product, error)
	FindByName(ctx context.Context, name string) ([]Product, error)
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	LowStock(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DefaultsPort supplies store-wide defaults for new products.
type DefaultsPort interface {
	LowStockThreshold(ctx context.Context) (decimal.Decimal, error)
}

// Service coordinates the product directory.
type Service struct {
	repo     RepositoryPort
	defaults DefaultsPort
	logger   *slog.Logger
}

// NewService builds Service. defaults may be nil.
func NewService(repo RepositoryPort, defaults DefaultsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, defaults: defaults, logger: logger}
}

const defaultUnit = "pcs"

var fallbackReorderLevel = decimal.NewFromInt(10)

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByName returns the products whose name matches exactly, ignoring case
// and surrounding whitespace.
func (s *Service) FindByName(ctx context.Context, name string) ([]Product, error) {
	candidates, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	matches := candidates[:0]
	for _, p := range candidates {
		if shared.SameName(p.Name, name) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// Resolve maps a user-supplied reference, either a product id or a product
// name, to a typed Resolution. It never guesses between several matches.
func (s *Service) Resolve(ctx context.Context, ref string) (Resolution, error) {
	ref = strings.TrimSpace(ref)
	res := Resolution{Status: shared.NotFound, Reference: ref}
	if ref == "" {
		return res, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		p, err := s.repo.FindByID(ctx, id)
		if errors.Is(err, ErrProductNotFound) {
			return res, nil
		}
		if err != nil {
			return Resolution{}, err
		}
		res.Status = shared.Found
		res.Product = &p
		return res, nil
	}
	matches, err := s.FindByName(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}
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

// List returns a page of products.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, shared.Pagination, error) {
	filters.Page = filters.Page.Normalize()
	products, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), nil
}

// LowStock lists products below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}

// Create validates and inserts a product. A missing reorder level falls back
// to the store's low-stock threshold.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	if err := validateInput(input); err != nil {
		return Product{}, err
	}
	if err := s.ensureNameAvailable(ctx, input.Name, uuid.Nil); err != nil {
		return Product{}, err
	}
	p := applyInput(Product{ID: uuid.New()}, input)
	if input.ReorderLevel.Valid {
		p.ReorderLevel = input.ReorderLevel.Decimal
	} else {
		p.ReorderLevel = s.defaultReorderLevel(ctx)
	}
	return s.repo.Create(ctx, p)
}

// Update validates and overwrites a product.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input ProductInput) (Product, error) {
	if err := validateInput(input); err != nil {
		return Product{}, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.ensureNameAvailable(ctx, input.Name, id); err != nil {
		return Product{}, err
	}
	p := applyInput(current, input)
	if input.ReorderLevel.Valid {
		p.ReorderLevel = input.ReorderLevel.Decimal
	}
	return s.repo.Update(ctx, p)
}

// Delete removes a product unless recorded transactions reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ensureNameAvailable(ctx context.Context, name string, self uuid.UUID) error {
	matches, err := s.FindByName(ctx, name)
	if err != nil {
		return err
	}
	for _, p := range matches {
		if p.ID != self {
			return ErrDuplicateName
		}
	}
	return nil
}

func (s *Service) defaultReorderLevel(ctx context.Context) decimal.Decimal {
	if s.defaults == nil {
		return fallbackReorderLevel
	}
	level, err := s.defaults.LowStockThreshold(ctx)
	if err != nil {
		s.logger.Warn("low stock threshold unavailable, using fallback", slog.Any("error", err))
		return fallbackReorderLevel
	}
	return level
}

func applyInput(p Product, input ProductInput) Product {
	p.Name = strings.TrimSpace(input.Name)
	p.Category = trimmed(input.Category)
	p.Brand = trimmed(input.Brand)
	p.Unit = strings.TrimSpace(input.Unit)
	if p.Unit == "" {
		p.Unit = defaultUnit
	}
	p.Quantity = input.Quantity
	p.BuyingPrice = input.BuyingPrice
	p.SellingPrice = input.SellingPrice
	p.SupplierID = input.SupplierID
	p.ExpiryDate = input.ExpiryDate.TimePtr()
	p.SKU = trimmed(input.SKU)
	return p
}

func validateInput(input ProductInput) error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		verr.Add("name", "is required")
	}
	checkNonNegative(verr, "quantity", input.Quantity, QuantityScale)
	checkNonNegative(verr, "buying_price", input.BuyingPrice, PriceScale)
	checkNonNegative(verr, "selling_price", input.SellingPrice, PriceScale)
	if input.ReorderLevel.Valid {
		checkNonNegative(verr, "reorder_level", input.ReorderLevel.Decimal, QuantityScale)
	}
	return verr.Err()
}

func checkNonNegative(verr *shared.ValidationError, field string, value decimal.Decimal, scale int32) {
	if value.IsNegative() {
		verr.Add(field, "must not be negative")
		return
	}
	if !shared.FitsScale(value, scale) {
		verr.Add(field, "must have at most %d decimal places", scale)
	}
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
