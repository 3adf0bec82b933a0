package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for the product directory.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/low-stock", h.lowStock)
	r.Get("/resolve", h.resolve)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type listResponse struct {
	Data       []Product         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Search:       q.Get("search"),
		Category:     q.Get("category"),
		LowStockOnly: q.Get("low_stock") == "true",
		SortBy:       q.Get("sort"),
		SortDir:      q.Get("dir"),
		Page:         shared.PageFromQuery(q),
	}
	products, page, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: products, Pagination: page})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": products, "count": len(products)})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		httpx.RespondError(w, h.logger, shared.NewValidationError("ref", "is required"))
		return
	}
	res, err := h.service.Resolve(r.Context(), ref)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("product created", slog.String("product_id", product.ID.String()), slog.String("actor", shared.ActorFromContext(r.Context())))
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input ProductInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
