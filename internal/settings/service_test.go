package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	saved *Settings
	err   error
}

func (m *memoryRepo) Get(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Settings{}, m.err
	}
	if m.saved == nil {
		return Settings{}, ErrNotSaved
	}
	return *m.saved, nil
}

func (m *memoryRepo) Save(ctx context.Context, s Settings) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &s
	return s, nil
}

func strPtr(s string) *string { return &s }

func TestGetReturnsDefaults(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil)

	s, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Storekeep", s.StoreName)
	assert.Equal(t, "₹", s.CurrencySymbol)
	assert.True(t, s.LowStockThreshold.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.TaxRate.IsZero())

	threshold, err := svc.LowStockThreshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", threshold.String())
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	svc := NewService(&memoryRepo{err: errors.New("timeout")}, nil)
	_, err := svc.LowStockThreshold(context.Background())
	assert.Error(t, err)
}

func TestUpdateTrimsAndStores(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil)

	saved, err := svc.Update(context.Background(), Input{
		StoreName:         "  Corner Store ",
		CurrencySymbol:    "$",
		Email:             strPtr("owner@example.com"),
		Phone:             strPtr("   "),
		LowStockThreshold: decimal.NewFromInt(5),
		TaxRate:           decimal.RequireFromString("18"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Corner Store", saved.StoreName)
	assert.Nil(t, saved.Phone)

	head, err := svc.Letterhead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Corner Store", head.StoreName)
	assert.Equal(t, "owner@example.com", head.Email)
	assert.Equal(t, "18", head.TaxRate.String())

	email, err := svc.StoreEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestUpdateValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil)
	_, err := svc.Update(context.Background(), Input{
		StoreName:         " ",
		LowStockThreshold: decimal.NewFromInt(-1),
		TaxRate:           decimal.NewFromInt(101),
	})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "store_name")
	assert.Contains(t, verr.Fields, "currency_symbol")
	assert.Contains(t, verr.Fields, "low_stock_threshold")
	assert.Contains(t, verr.Fields, "tax_rate")
}

func TestHandlerRoundTrip(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/settings", NewHandler(nil, NewService(&memoryRepo{}, nil)).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_name":"Storekeep"`)

	rec = httptest.NewRecorder()
	body := `{"store_name":"Kirana","currency_symbol":"₹","low_stock_threshold":"3","tax_rate":"5"}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"store_name":"Kirana","currency_symbol":"₹","tax_rate":"250"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tax_rate")
}
