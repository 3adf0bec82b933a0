package expenses

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

// RepositoryPort abstracts expense persistence.
type RepositoryPort interface {
	List(ctx context.Context, filters Filters) ([]Expense, int, error)
	Sum(ctx context.Context, filters Filters) (decimal.Decimal, error)
	Get(ctx context.Context, id uuid.UUID) (Expense, error)
	Create(ctx context.Context, e Expense) (Expense, error)
	Update(ctx context.Context, e Expense) (Expense, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Invalidator drops cached report aggregates.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages expenses.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService constructs Service. invalidator may be nil.
func NewService(repo RepositoryPort, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, logger: logger, clock: time.Now}
}

// List returns a page of expenses with the filtered and this-month totals.
func (s *Service) List(ctx context.Context, filters Filters) ([]Expense, shared.Pagination, Totals, error) {
	filters.Page = filters.Page.Normalize()
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, Totals{}, err
	}
	sum, err := s.repo.Sum(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, Totals{}, err
	}
	now := s.clock().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	month, err := s.repo.Sum(ctx, Filters{From: monthStart, To: monthStart.AddDate(0, 1, 0)})
	if err != nil {
		return nil, shared.Pagination{}, Totals{}, err
	}
	return items, shared.NewPagination(filters.Page.Page, filters.Page.Limit, total), Totals{Total: sum, ThisMonth: month}, nil
}

// Total sums expenses in [from, to).
func (s *Service) Total(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return s.repo.Sum(ctx, Filters{From: from, To: to})
}

// Get returns an expense.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores an expense.
func (s *Service) Create(ctx context.Context, input Input) (Expense, error) {
	e, err := s.build(input)
	if err != nil {
		return Expense{}, err
	}
	e.ID = uuid.New()
	if actor := shared.ActorFromContext(ctx); actor != "" {
		e.CreatedBy = &actor
	}
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	s.logger.Info("expense recorded",
		slog.String("expense_id", created.ID.String()),
		slog.String("type", string(created.Type)),
		slog.String("amount", created.Amount.String()),
	)
	s.invalidate(ctx)
	return created, nil
}

// Update validates and overwrites an expense.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (Expense, error) {
	e, err := s.build(input)
	if err != nil {
		return Expense{}, err
	}
	e.ID = id
	updated, err := s.repo.Update(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) build(input Input) (Expense, error) {
	verr := &shared.ValidationError{}
	if !input.Type.Valid() {
		verr.Add("expense_type", "must be one of rent, electricity, wages, delivery or misc")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		verr.Add("description", "is required")
	}
	switch {
	case !input.Amount.IsPositive():
		verr.Add("amount", "must be greater than 0")
	case !shared.FitsScale(input.Amount, 2):
		verr.Add("amount", "must have at most 2 decimal places")
	}
	method := input.PaymentMethod
	if method == "" {
		method = MethodCash
	}
	if !method.Valid() {
		verr.Add("payment_method", "must be one of cash, upi or bank")
	}
	if err := verr.Err(); err != nil {
		return Expense{}, err
	}
	date := shared.NewDate(s.clock())
	if input.Date != nil && !input.Date.IsZero() {
		date = shared.NewDate(input.Date.Time)
	}
	return Expense{
		Type:          input.Type,
		Description:   description,
		Amount:        input.Amount,
		Date:          date,
		PaymentMethod: method,
	}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}
