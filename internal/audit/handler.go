package audit

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
)

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.export)
}

func (h *Handler) filters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	from, to, err := httpx.DateRangeQuery(q)
	if err != nil {
		return TimelineFilters{}, err
	}
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("limit"))
	return TimelineFilters{
		From:     from,
		To:       to,
		Actor:    q.Get("actor"),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
		Page:     page,
		PageSize: size,
	}, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Attachment(w, "text/csv", "audit-timeline.csv", buf.Bytes())
}
