package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/report"
)

// PDFRenderer converts a summary document to PDF.
type PDFRenderer interface {
	Summary(ctx context.Context, doc report.SummaryDocument) ([]byte, error)
}

// LetterheadSource supplies the store identity printed on reports.
type LetterheadSource interface {
	Letterhead(ctx context.Context) (report.Letterhead, error)
}

// Handler exposes the report endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	pdf        PDFRenderer
	letterhead LetterheadSource
}

// NewHandler constructs Handler. pdf and letterhead may be nil, disabling the
// PDF export.
func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer, letterhead LetterheadSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pdf: pdf, letterhead: letterhead}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/summary", h.summary)
	r.Get("/summary.csv", h.summaryCSV)
	r.Get("/summary.pdf", h.summaryPDF)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Summary, bool) {
	from, to, err := httpx.DateRangeQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return Summary{}, false
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, -1)
	}
	out, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return Summary{}, false
	}
	return out, true
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	out, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	out, ok := h.load(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := WriteSummaryCSV(&buf, out); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Attachment(w, "text/csv", filename(out, "csv"), buf.Bytes())
}

func (h *Handler) summaryPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil || h.letterhead == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "report rendering is not configured")
		return
	}
	out, ok := h.load(w, r)
	if !ok {
		return
	}
	store, err := h.letterhead.Letterhead(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	pdf, err := h.pdf.Summary(r.Context(), SummaryDocument(store, out, time.Now()))
	if errors.Is(err, report.ErrNotConfigured) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "report rendering is not configured")
		return
	}
	if err != nil {
		h.logger.Error("render summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "report rendering failed")
		return
	}
	httpx.Attachment(w, "application/pdf", filename(out, "pdf"), pdf)
}

func filename(s Summary, ext string) string {
	return fmt.Sprintf("summary-%s-%s.%s", s.From, s.To, ext)
}
