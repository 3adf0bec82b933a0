package recorder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/shared"
)

var (
	// ErrProductNotFound matches ProductNotFoundError.
	ErrProductNotFound = errors.New("recorder: product not found")
	// ErrAmbiguousProduct matches AmbiguousProductError.
	ErrAmbiguousProduct = errors.New("recorder: ambiguous product reference")
	// ErrInsufficientStock matches InsufficientStockError.
	ErrInsufficientStock = errors.New("recorder: insufficient stock")
	// ErrPersistence matches PersistenceError.
	ErrPersistence = errors.New("recorder: persistence failure")

	// ErrTxConflict is returned by repositories when the store aborted the
	// transaction because of concurrent access; the whole unit may be re-run.
	ErrTxConflict = errors.New("recorder: transaction conflict")
	// ErrNumberCollision is returned by repositories when a generated bill or
	// reference number already exists.
	ErrNumberCollision = errors.New("recorder: document number collision")
)

// ProductNotFoundError reports a line whose product reference matched nothing.
type ProductNotFoundError struct {
	Line      int
	Reference string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("line %d: no product matches %q", e.Line+1, e.Reference)
}

// Is matches ErrProductNotFound and shared.ErrUnprocessable.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound || target == shared.ErrUnprocessable
}

// AmbiguousProductError reports a line whose product reference matched several products.
type AmbiguousProductError struct {
	Line       int
	Reference  string
	Candidates []Candidate
}

// Candidate identifies one of several products an ambiguous reference matched.
type Candidate struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (e *AmbiguousProductError) Error() string {
	ids := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		ids = append(ids, c.ID.String())
	}
	return fmt.Sprintf("line %d: %q matches %d products (%s); use the product id", e.Line+1, e.Reference, len(e.Candidates), strings.Join(ids, ", "))
}

// Is matches ErrAmbiguousProduct and shared.ErrUnprocessable.
func (e *AmbiguousProductError) Is(target error) bool {
	return target == ErrAmbiguousProduct || target == shared.ErrUnprocessable
}

// InsufficientStockError reports a sale that would drive a product's stock below zero.
// Requested is the total requested across every line for the product.
type InsufficientStockError struct {
	Line        int
	ProductID   uuid.UUID
	ProductName string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("line %d: insufficient stock for %q: requested %s, available %s", e.Line+1, e.ProductName, e.Requested.String(), e.Available.String())
}

// Is matches ErrInsufficientStock and shared.ErrConflict.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == shared.ErrConflict
}

// PersistenceError reports a failed read or write against the store. Nothing
// from the failed call was committed.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("recorder: %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistence(step string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Step: step, Err: err}
}

func isConflict(err error) bool {
	return errors.Is(err, ErrTxConflict) || errors.Is(err, ErrNumberCollision) || errors.Is(err, catalog.ErrStockConflict)
}

func isDomainError(err error) bool {
	return errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrAmbiguousProduct) ||
		errors.Is(err, ErrInsufficientStock)
}

// ProblemData exposes the line and the matching candidates to API clients.
func (e *AmbiguousProductError) ProblemData() any {
	return map[string]any{"line": e.Line + 1, "reference": e.Reference, "candidates": e.Candidates}
}

// ProblemData exposes the line and reference to API clients.
func (e *ProductNotFoundError) ProblemData() any {
	return map[string]any{"line": e.Line + 1, "reference": e.Reference}
}

// ProblemData exposes the shortfall to API clients.
func (e *InsufficientStockError) ProblemData() any {
	return map[string]any{
		"line":         e.Line + 1,
		"product_id":   e.ProductID,
		"product_name": e.ProductName,
		"requested":    e.Requested,
		"available":    e.Available,
	}
}
