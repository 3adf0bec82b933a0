package expenses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/shared"
)

// Handler wires HTTP endpoints for expenses.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the expenses handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type listResponse struct {
	Data       []Expense         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
	Totals     Totals            `json:"totals"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := httpx.DateRangeQuery(q)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	typ := Type(q.Get("type"))
	if typ != "" && !typ.Valid() {
		httpx.RespondError(w, h.logger, shared.NewValidationError("type", "must be one of rent, electricity, wages, delivery or misc"))
		return
	}
	items, page, totals, err := h.service.List(r.Context(), Filters{From: from, To: to, Type: typ, Page: shared.PageFromQuery(q)})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: page, Totals: totals})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	e, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input Input
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	e, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
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
