package parties

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type memoryRepo struct {
	suppliers map[uuid.UUID]Supplier
	customers map[uuid.UUID]Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{suppliers: map[uuid.UUID]Supplier{}, customers: map[uuid.UUID]Customer{}}
}

func (r *memoryRepo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	out := []Supplier{}
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, nil
}

func (r *memoryRepo) FindSuppliersByName(ctx context.Context, name string) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range r.suppliers {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	r.suppliers[s.ID] = s
	return s, nil
}

func (r *memoryRepo) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.suppliers[id]; !ok {
		return ErrSupplierNotFound
	}
	delete(r.suppliers, id)
	return nil
}

func (r *memoryRepo) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	out := []Customer{}
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (r *memoryRepo) FindCustomersByName(ctx context.Context, name string) ([]Customer, error) {
	out := []Customer{}
	for _, c := range r.customers {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveCustomer(ctx context.Context, c Customer) (Customer, error) {
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.customers[id]; !ok {
		return ErrCustomerNotFound
	}
	delete(r.customers, id)
	return nil
}

func TestResolveSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	acme, err := svc.CreateSupplier(ctx, SupplierInput{Name: " Acme Traders "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Traders", acme.Name)

	m, err := svc.ResolveSupplier(ctx, "ACME traders")
	require.NoError(t, err)
	require.Equal(t, shared.Found, m.Status)
	require.Equal(t, acme.ID, *m.ID)

	m, err = svc.ResolveSupplier(ctx, acme.ID.String())
	require.NoError(t, err)
	require.Equal(t, shared.Found, m.Status)

	m, err = svc.ResolveSupplier(ctx, "Unknown Wholesale")
	require.NoError(t, err)
	require.Equal(t, shared.NotFound, m.Status)
	require.Nil(t, m.ID)

	m, err = svc.ResolveSupplier(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, shared.NotFound, m.Status)
}

func TestResolveCustomerAmbiguous(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	_, err := svc.CreateCustomer(ctx, CustomerInput{Name: "Ravi"})
	require.NoError(t, err)
	_, err = svc.CreateCustomer(ctx, CustomerInput{Name: "RAVI"})
	require.NoError(t, err)

	m, err := svc.ResolveCustomer(ctx, "ravi")
	require.NoError(t, err)
	require.Equal(t, shared.Ambiguous, m.Status)
	require.Equal(t, 2, m.Matches)
	require.Nil(t, m.ID)
}

func TestCustomerValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "A", CreditLimit: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateCustomer(context.Background(), CustomerInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSupplierHandlerLifecycle(t *testing.T) {
	h := NewHandler(nil, NewService(newMemoryRepo()))
	r := chi.NewRouter()
	r.Route("/suppliers", h.MountSupplierRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", strings.NewReader(`{"name":"Fresh Farms","email":"orders@freshfarms.example"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", strings.NewReader(`{"name":"Bad","email":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/suppliers/resolve?ref=fresh+farms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"found"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/suppliers/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
