package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
	"github.com/storekeep/storekeep/report"
)

// IdempotencyHeader carries the caller's request key.
const IdempotencyHeader = "Idempotency-Key"

// BillRenderer renders a sale bill to PDF.
type BillRenderer interface {
	Bill(ctx context.Context, doc report.BillDocument) ([]byte, error)
}

// LetterheadSource supplies the store identity printed on bills.
type LetterheadSource interface {
	Letterhead(ctx context.Context) (report.Letterhead, error)
}

// Handler wires HTTP endpoints for sales and purchases.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	bills      BillRenderer
	letterhead LetterheadSource
}

// NewHandler constructs the recorder handler. bills and letterhead may be nil,
// in which case bill downloads answer 503.
func NewHandler(logger *slog.Logger, service *Service, bills BillRenderer, letterhead LetterheadSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, bills: bills, letterhead: letterhead}
}

// MountSaleRoutes registers sale routes.
func (h *Handler) MountSaleRoutes(r chi.Router) {
	r.Get("/", h.listSales)
	r.Post("/", h.recordSale)
	r.Get("/{id}", h.getSale)
	r.Get("/{id}/bill.pdf", h.saleBill)
}

// MountPurchaseRoutes registers purchase routes.
func (h *Handler) MountPurchaseRoutes(r chi.Router) {
	r.Get("/", h.listPurchases)
	r.Post("/", h.recordPurchase)
	r.Get("/{id}", h.getPurchase)
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var input SaleInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.RequestKey = r.Header.Get(IdempotencyHeader)
	input.Actor = shared.ActorFromContext(r.Context())
	receipt, err := h.service.RecordSale(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, receiptStatus(receipt.Replayed), receipt)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var input PurchaseInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.RequestKey = r.Header.Get(IdempotencyHeader)
	input.Actor = shared.ActorFromContext(r.Context())
	receipt, err := h.service.RecordPurchase(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, receiptStatus(receipt.Replayed), receipt)
}

func receiptStatus(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

type saleList struct {
	Data       []Sale            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

type purchaseList struct {
	Data       []Purchase        `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := httpx.DateRangeQuery(q)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	customerID, err := httpx.OptionalUUIDQuery(q, "customer_id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payment := PaymentType(q.Get("payment_type"))
	if payment != "" && !payment.Valid() {
		httpx.RespondError(w, h.logger, shared.NewValidationError("payment_type", "must be one of cash, upi, credit or bank"))
		return
	}
	sales, page, err := h.service.ListSales(r.Context(), SaleFilters{
		From:        from,
		To:          to,
		PaymentType: payment,
		CustomerID:  customerID,
		Page:        shared.PageFromQuery(q),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saleList{Data: sales, Pagination: page})
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := httpx.DateRangeQuery(q)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	supplierID, err := httpx.OptionalUUIDQuery(q, "supplier_id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	purchases, page, err := h.service.ListPurchases(r.Context(), PurchaseFilters{
		From:       from,
		To:         to,
		SupplierID: supplierID,
		Page:       shared.PageFromQuery(q),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchaseList{Data: purchases, Pagination: page})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) saleBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if h.bills == nil || h.letterhead == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "bill rendering is not configured")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	store, err := h.letterhead.Letterhead(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	pdf, err := h.bills.Bill(r.Context(), BillDocument(store, sale))
	if errors.Is(err, report.ErrNotConfigured) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "bill rendering is not configured")
		return
	}
	if err != nil {
		h.logger.Error("render bill", slog.String("sale_id", id.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "bill rendering failed")
		return
	}
	httpx.Attachment(w, "application/pdf", fmt.Sprintf("%s.pdf", sale.BillNumber), pdf)
}

// BillDocument maps a recorded sale onto the printable bill.
func BillDocument(store report.Letterhead, sale Sale) report.BillDocument {
	doc := report.BillDocument{
		Store:       store,
		BillNumber:  sale.BillNumber,
		Date:        sale.SaleDate,
		PaymentType: string(sale.PaymentType),
		Total:       sale.TotalAmount,
		Lines:       make([]report.BillLine, 0, len(sale.Items)),
	}
	if sale.Customer != nil {
		doc.Customer = *sale.Customer
	}
	for _, it := range sale.Items {
		doc.Lines = append(doc.Lines, report.BillLine{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return doc
}
