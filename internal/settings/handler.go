package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
)

// Handler wires HTTP endpoints for store settings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the settings handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	settings, err := h.service.Update(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}
