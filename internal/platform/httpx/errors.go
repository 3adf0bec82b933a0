package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/storekeep/storekeep/internal/shared"
)

// DataError is implemented by errors that carry structured details for the
// problem response, such as the candidates of an ambiguous reference.
type DataError interface {
	error
	ProblemData() any
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr *shared.ValidationError
		derr DataError
	)
	var data any
	if errors.As(err, &derr) {
		data = derr.ProblemData()
	}
	switch {
	case errors.As(err, &verr):
		writeProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
			Errors: verr.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		writeProblem(w, ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: err.Error(), Data: data})
	case errors.Is(err, shared.ErrUnprocessable):
		writeProblem(w, ProblemDetail{Title: "Unprocessable Entity", Status: http.StatusUnprocessableEntity, Detail: err.Error(), Data: data})
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
