package recorder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/report"
)

type stubBills struct {
	doc report.BillDocument
}

func (s *stubBills) Bill(ctx context.Context, doc report.BillDocument) ([]byte, error) {
	s.doc = doc
	return []byte("%PDF-stub"), nil
}

type stubLetterhead struct{}

func (stubLetterhead) Letterhead(ctx context.Context) (report.Letterhead, error) {
	return report.Letterhead{StoreName: "Corner Store", CurrencySymbol: "₹"}, nil
}

func newTestRouter(t *testing.T, bills BillRenderer, products ...catalog.Product) (http.Handler, *fixture) {
	f := newFixture(t, products...)
	var letterhead LetterheadSource
	if bills != nil {
		letterhead = stubLetterhead{}
	}
	h := NewHandler(nil, f.service, bills, letterhead)
	r := chi.NewRouter()
	r.Route("/sales", h.MountSaleRoutes)
	r.Route("/purchases", h.MountPurchaseRoutes)
	return r, f
}

func do(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRecordSale(t *testing.T) {
	router, f := newTestRouter(t, nil, product("Rice", "10", "60"))

	rec := do(router, http.MethodPost, "/sales", `{"payment_type":"cash","items":[{"product":"rice","quantity":"4","unit_price":"50"}],"total_amount":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt SaleReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "200", receipt.Sale.TotalAmount.String())
	assert.Len(t, receipt.Sale.Items, 1)

	rec = do(router, http.MethodGet, "/sales/"+receipt.Sale.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), receipt.Sale.BillNumber)

	rec = do(router, http.MethodGet, "/sales?payment_type=cash&from=2020-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Len(t, f.observer.outcomes, 1)
}

func TestHandlerRecordSaleErrors(t *testing.T) {
	router, _ := newTestRouter(t, nil, product("Rice", "2", "60"), product("Oil", "5", "100"), product("oil", "5", "110"))

	cases := []struct {
		name   string
		body   string
		status int
		expect string
	}{
		{"insufficient stock", `{"items":[{"product":"Rice","quantity":"3"}]}`, http.StatusConflict, `"available":"2"`},
		{"unknown product", `{"items":[{"product":"Ghee","quantity":"1"}]}`, http.StatusUnprocessableEntity, `"reference":"Ghee"`},
		{"ambiguous product", `{"items":[{"product":"OIL","quantity":"1"}]}`, http.StatusUnprocessableEntity, `"candidates"`},
		{"zero quantity", `{"items":[{"product":"Rice","quantity":"0"}]}`, http.StatusBadRequest, `items[0].quantity`},
		{"no items", `{"items":[]}`, http.StatusBadRequest, `items`},
		{"unknown field", `{"items":[{"product":"Rice","quantity":"1"}],"discount":"5"}`, http.StatusBadRequest, `body`},
		{"bad payment", `{"payment_type":"barter","items":[{"product":"Rice","quantity":"1"}]}`, http.StatusBadRequest, `payment_type`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/sales", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.expect)
		})
	}
}

func TestHandlerIdempotencyKey(t *testing.T) {
	router, f := newTestRouter(t, nil, product("Rice", "10", "60"))
	body := `{"items":[{"product":"Rice","quantity":"1"}]}`

	first := do(router, http.MethodPost, "/sales", body, IdempotencyHeader, "abc-123")
	require.Equal(t, http.StatusCreated, first.Code)
	second := do(router, http.MethodPost, "/sales", body, IdempotencyHeader, "abc-123")
	require.Equal(t, http.StatusOK, second.Code)

	var a, b SaleReceipt
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Sale.ID, b.Sale.ID)
	assert.True(t, b.Replayed)
	sales, _, _ := f.store.counts()
	assert.Equal(t, 1, sales)
}

func TestHandlerGetSaleErrors(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/sales/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/sales/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/sales?from=01-01-2025", "").Code)
}

func TestHandlerSaleBill(t *testing.T) {
	bills := &stubBills{}
	router, _ := newTestRouter(t, bills, product("Rice", "10", "60"))

	rec := do(router, http.MethodPost, "/sales", `{"items":[{"product":"Rice","quantity":"2"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var receipt SaleReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))

	rec = do(router, http.MethodGet, "/sales/"+receipt.Sale.ID.String()+"/bill.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), receipt.Sale.BillNumber)
	assert.Equal(t, "Corner Store", bills.doc.Store.StoreName)
	require.Len(t, bills.doc.Lines, 1)
	assert.Equal(t, "Rice", bills.doc.Lines[0].Name)
	assert.Equal(t, "120", bills.doc.Total.String())
}

func TestHandlerSaleBillUnconfigured(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := do(router, http.MethodGet, "/sales/"+uuid.NewString()+"/bill.pdf", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerRecordPurchase(t *testing.T) {
	router, f := newTestRouter(t, nil, product("Rice", "10", "60"))

	rec := do(router, http.MethodPost, "/purchases", `{"supplier":"Acme Traders","invoice_number":"INV-9","items":[{"product":"Rice","quantity":"5","unit_cost":"42.5"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt PurchaseReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.NotNil(t, receipt.Purchase.SupplierID)
	assert.Equal(t, f.supplierID, *receipt.Purchase.SupplierID)
	require.NotNil(t, receipt.Purchase.InvoiceNumber)
	assert.Equal(t, "INV-9", *receipt.Purchase.InvoiceNumber)

	rec = do(router, http.MethodGet, "/purchases/"+receipt.Purchase.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/purchases?supplier_id="+f.supplierID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), receipt.Purchase.ReferenceNumber)

	rec = do(router, http.MethodPost, "/purchases", `{"items":[{"product":"Rice","quantity":"5"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
