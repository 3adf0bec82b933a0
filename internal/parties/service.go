package parties

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/storekeep/storekeep/internal/shared"
)

// RepositoryPort abstracts party persistence for the service.
type RepositoryPort interface {
	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error)
	FindSuppliersByName(ctx context.Context, name string) ([]Supplier, error)
	SaveSupplier(ctx context.Context, s Supplier) (Supplier, error)
	DeleteSupplier(ctx context.Context, id uuid.UUID) error

	ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
	FindCustomersByName(ctx context.Context, name string) ([]Customer, error)
	SaveCustomer(ctx context.Context, c Customer) (Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}

// Service coordinates the party directory.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListSuppliers returns a page of suppliers.
func (s *Service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, shared.Pagination, error) {
	filters.Page = filters.Page.Normalize()
	items, total, err := s.repo.ListSuppliers(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), nil
}

// GetSupplier returns a supplier by id.
func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// CreateSupplier inserts a supplier.
func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	if err := validateName(input.Name); err != nil {
		return Supplier{}, err
	}
	return s.repo.SaveSupplier(ctx, applySupplier(Supplier{ID: uuid.New()}, input))
}

// UpdateSupplier overwrites a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, id uuid.UUID, input SupplierInput) (Supplier, error) {
	if err := validateName(input.Name); err != nil {
		return Supplier{}, err
	}
	current, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	return s.repo.SaveSupplier(ctx, applySupplier(current, input))
}

// DeleteSupplier removes a supplier.
func (s *Service) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSupplier(ctx, id)
}

// ListCustomers returns a page of customers.
func (s *Service) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, shared.Pagination, error) {
	filters.Page = filters.Page.Normalize()
	items, total, err := s.repo.ListCustomers(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), nil
}

// GetCustomer returns a customer by id.
func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// CreateCustomer inserts a customer.
func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	if err := validateName(input.Name); err != nil {
		return Customer{}, err
	}
	if input.CreditLimit.IsNegative() {
		return Customer{}, shared.NewValidationError("credit_limit", "must not be negative")
	}
	return s.repo.SaveCustomer(ctx, applyCustomer(Customer{ID: uuid.New()}, input))
}

// UpdateCustomer overwrites a customer.
func (s *Service) UpdateCustomer(ctx context.Context, id uuid.UUID, input CustomerInput) (Customer, error) {
	if err := validateName(input.Name); err != nil {
		return Customer{}, err
	}
	if input.CreditLimit.IsNegative() {
		return Customer{}, shared.NewValidationError("credit_limit", "must not be negative")
	}
	current, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.SaveCustomer(ctx, applyCustomer(current, input))
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// ResolveSupplier maps an id or a name to a supplier.
func (s *Service) ResolveSupplier(ctx context.Context, ref string) (Match, error) {
	return resolve(ctx, KindSupplier, ref,
		func(ctx context.Context, id uuid.UUID) (string, error) {
			sup, err := s.repo.GetSupplier(ctx, id)
			return sup.Name, err
		},
		func(ctx context.Context, name string) ([]named, error) {
			items, err := s.repo.FindSuppliersByName(ctx, name)
			out := make([]named, 0, len(items))
			for _, it := range items {
				out = append(out, named{id: it.ID, name: it.Name})
			}
			return out, err
		})
}

// ResolveCustomer maps an id or a name to a customer.
func (s *Service) ResolveCustomer(ctx context.Context, ref string) (Match, error) {
	return resolve(ctx, KindCustomer, ref,
		func(ctx context.Context, id uuid.UUID) (string, error) {
			c, err := s.repo.GetCustomer(ctx, id)
			return c.Name, err
		},
		func(ctx context.Context, name string) ([]named, error) {
			items, err := s.repo.FindCustomersByName(ctx, name)
			out := make([]named, 0, len(items))
			for _, it := range items {
				out = append(out, named{id: it.ID, name: it.Name})
			}
			return out, err
		})
}

type named struct {
	id   uuid.UUID
	name string
}

func resolve(
	ctx context.Context,
	kind Kind,
	ref string,
	byID func(context.Context, uuid.UUID) (string, error),
	byName func(context.Context, string) ([]named, error),
) (Match, error) {
	ref = strings.TrimSpace(ref)
	m := Match{Kind: kind, Status: shared.NotFound, Reference: ref}
	if ref == "" {
		return m, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		name, err := byID(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			return m, nil
		}
		if err != nil {
			return Match{}, err
		}
		m.Status, m.ID, m.Name, m.Matches = shared.Found, &id, name, 1
		return m, nil
	}
	candidates, err := byName(ctx, ref)
	if err != nil {
		return Match{}, err
	}
	var hits []named
	for _, c := range candidates {
		if shared.SameName(c.name, ref) {
			hits = append(hits, c)
		}
	}
	m.Matches = len(hits)
	switch len(hits) {
	case 0:
	case 1:
		id := hits[0].id
		m.Status, m.ID, m.Name = shared.Found, &id, hits[0].name
	default:
		m.Status = shared.Ambiguous
	}
	return m, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewValidationError("name", "is required")
	}
	return nil
}

func applySupplier(s Supplier, in SupplierInput) Supplier {
	s.Name = strings.TrimSpace(in.Name)
	s.ContactNumber = trimmed(in.ContactNumber)
	s.Email = trimmed(in.Email)
	s.Address = trimmed(in.Address)
	s.OutstandingBalance = in.OutstandingBalance
	return s
}

func applyCustomer(c Customer, in CustomerInput) Customer {
	c.Name = strings.TrimSpace(in.Name)
	c.ContactNumber = trimmed(in.ContactNumber)
	c.Address = trimmed(in.Address)
	c.CreditLimit = in.CreditLimit
	c.OutstandingBalance = in.OutstandingBalance
	return c
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
