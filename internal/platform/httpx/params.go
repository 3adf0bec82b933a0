package httpx

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storekeep/storekeep/internal/shared"
)

// UUIDParam parses a UUID route parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(name, "must be a valid id")
	}
	return id, nil
}

// OptionalUUIDQuery parses an optional UUID query parameter.
func OptionalUUIDQuery(q url.Values, name string) (*uuid.UUID, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewValidationError(name, "must be a valid id")
	}
	return &id, nil
}

// DateRangeQuery parses from/to query parameters (YYYY-MM-DD) into a
// half-open UTC interval [from, to+1day). Missing bounds stay zero.
func DateRangeQuery(q url.Values) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, shared.NewValidationError("from", "%s", err.Error())
		}
		from = d.Time
	}
	if raw := q.Get("to"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, shared.NewValidationError("to", "%s", err.Error())
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, shared.NewValidationError("to", "must not be before from")
	}
	return from, to, nil
}
