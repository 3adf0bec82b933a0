package parties

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for suppliers and customers.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the parties handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountSupplierRoutes registers supplier routes.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Get("/", h.listSuppliers)
	r.Post("/", h.createSupplier)
	r.Get("/resolve", h.resolveSupplier)
	r.Get("/{id}", h.getSupplier)
	r.Put("/{id}", h.updateSupplier)
	r.Delete("/{id}", h.deleteSupplier)
}

// MountCustomerRoutes registers customer routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/", h.listCustomers)
	r.Post("/", h.createCustomer)
	r.Get("/resolve", h.resolveCustomer)
	r.Get("/{id}", h.getCustomer)
	r.Put("/{id}", h.updateCustomer)
	r.Delete("/{id}", h.deleteCustomer)
}

func filtersFromRequest(r *http.Request) ListFilters {
	q := r.URL.Query()
	return ListFilters{Search: q.Get("search"), Page: shared.PageFromQuery(q)}
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListSuppliers(r.Context(), filtersFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sup, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sup, err := h.service.CreateSupplier(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sup)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input SupplierInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sup, err := h.service.UpdateSupplier(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolveSupplier(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.ResolveSupplier(r.Context(), r.URL.Query().Get("ref"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListCustomers(r.Context(), filtersFromRequest(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var input CustomerInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input CustomerInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolveCustomer(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.ResolveCustomer(r.Context(), r.URL.Query().Get("ref"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
