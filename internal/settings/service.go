package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
	"github.com/storekeep/storekeep/report"
)

// RepositoryPort abstracts settings persistence.
type RepositoryPort interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) (Settings, error)
}

// Service reads and updates store settings.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns the saved settings, or the defaults when none were saved.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	settings, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotSaved) {
		return Defaults(), nil
	}
	return settings, err
}

// Update validates and stores the settings.
func (s *Service) Update(ctx context.Context, input Input) (Settings, error) {
	verr := &shared.ValidationError{}
	name := strings.TrimSpace(input.StoreName)
	if name == "" {
		verr.Add("store_name", "is required")
	}
	symbol := strings.TrimSpace(input.CurrencySymbol)
	if symbol == "" {
		verr.Add("currency_symbol", "is required")
	}
	if input.LowStockThreshold.IsNegative() {
		verr.Add("low_stock_threshold", "must not be negative")
	}
	if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		verr.Add("tax_rate", "must be between 0 and 100")
	}
	if err := verr.Err(); err != nil {
		return Settings{}, err
	}
	saved, err := s.repo.Save(ctx, Settings{
		StoreName:         name,
		Address:           blankToNil(input.Address),
		Phone:             blankToNil(input.Phone),
		Email:             blankToNil(input.Email),
		CurrencySymbol:    symbol,
		LowStockThreshold: input.LowStockThreshold,
		TaxRate:           input.TaxRate,
		LogoURL:           blankToNil(input.LogoURL),
	})
	if err != nil {
		return Settings{}, err
	}
	s.logger.Info("settings updated", slog.String("actor", shared.ActorFromContext(ctx)))
	return saved, nil
}

// LowStockThreshold is the reorder level given to new products.
func (s *Service) LowStockThreshold(ctx context.Context) (decimal.Decimal, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return settings.LowStockThreshold, nil
}

// Letterhead maps the settings onto printed documents.
func (s *Service) Letterhead(ctx context.Context) (report.Letterhead, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return report.Letterhead{}, err
	}
	return report.Letterhead{
		StoreName:      settings.StoreName,
		Address:        deref(settings.Address),
		Phone:          deref(settings.Phone),
		Email:          deref(settings.Email),
		CurrencySymbol: settings.CurrencySymbol,
		LogoURL:        deref(settings.LogoURL),
		TaxRate:        settings.TaxRate,
	}, nil
}

// StoreEmail returns the address alerts are sent to, empty when unset.
func (s *Service) StoreEmail(ctx context.Context) (string, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return deref(settings.Email), nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
