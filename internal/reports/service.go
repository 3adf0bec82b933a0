package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/storekeep/storekeep/internal/platform/cache"
	"github.com/storekeep/storekeep/internal/shared"
)

// Service builds dashboard and summary reports, caching them in a versioned
// namespace that write paths bump.
type Service struct {
	source Source
	cache  *cache.Versioned
	group  singleflight.Group
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs Service. A nil cache disables caching.
func NewService(source Source, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: c, logger: logger, clock: time.Now}
}

// Bump invalidates every cached report.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Dashboard returns today's snapshot.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	today := shared.NewDate(s.clock().UTC())
	return fetch(ctx, s, []string{"dashboard", today.String()}, func(ctx context.Context) (Dashboard, error) {
		return s.buildDashboard(ctx, today)
	})
}

// Summary returns the report for the inclusive day range [from, to]. Zero
// bounds default to the current month so far.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	start, end, err := s.summaryRange(from, to)
	if err != nil {
		return Summary{}, err
	}
	return fetch(ctx, s, []string{"summary", start.String(), end.String()}, func(ctx context.Context) (Summary, error) {
		return s.buildSummary(ctx, start, end)
	})
}

func (s *Service) summaryRange(from, to time.Time) (shared.Date, shared.Date, error) {
	today := shared.NewDate(s.clock().UTC())
	start := today.AddDate(0, 0, 1-today.Day())
	end := today.Time
	if !from.IsZero() {
		start = shared.NewDate(from).Time
	}
	if !to.IsZero() {
		end = shared.NewDate(to).Time
	}
	if end.Before(start) {
		return shared.Date{}, shared.Date{}, shared.NewValidationError("to", "must not be before from")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxSummaryDays {
		return shared.Date{}, shared.Date{}, shared.NewValidationError("to", "range must not exceed %d days", MaxSummaryDays)
	}
	return shared.Date{Time: start}, shared.Date{Time: end}, nil
}

func (s *Service) buildDashboard(ctx context.Context, today shared.Date) (Dashboard, error) {
	day := Period{From: today.Time, To: today.AddDate(0, 0, 1)}
	trend := Period{From: today.AddDate(0, 0, 1-TrendDays), To: day.To}
	out := Dashboard{Date: today}

	var byDay []DaySales
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.SalesTotal, out.SalesCount, err = s.source.SalesTotal(gctx, day)
		return wrap("sales total", err)
	})
	g.Go(func() (err error) {
		out.PurchasesTotal, _, err = s.source.PurchasesTotal(gctx, day)
		return wrap("purchases total", err)
	})
	g.Go(func() (err error) {
		out.ExpensesTotal, err = s.source.ExpensesTotal(gctx, day)
		return wrap("expenses total", err)
	})
	g.Go(func() (err error) {
		out.LowStockCount, err = s.source.LowStockCount(gctx)
		return wrap("low stock", err)
	})
	g.Go(func() (err error) {
		byDay, err = s.source.SalesByDay(gctx, trend)
		return wrap("sales trend", err)
	})
	g.Go(func() (err error) {
		out.RecentActivity, err = s.source.RecentActivity(gctx, RecentLimit)
		return wrap("recent activity", err)
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	out.Profit = out.SalesTotal.Sub(out.PurchasesTotal).Sub(out.ExpensesTotal)
	out.SalesTrend = fillDays(trend, byDay)
	if out.RecentActivity == nil {
		out.RecentActivity = []Activity{}
	}
	return out, nil
}

func (s *Service) buildSummary(ctx context.Context, from, to shared.Date) (Summary, error) {
	p := Period{From: from.Time, To: to.AddDate(0, 0, 1)}
	out := Summary{From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.SalesTotal, out.SalesCount, err = s.source.SalesTotal(gctx, p)
		return wrap("sales total", err)
	})
	g.Go(func() (err error) {
		out.PurchasesTotal, out.PurchaseCount, err = s.source.PurchasesTotal(gctx, p)
		return wrap("purchases total", err)
	})
	g.Go(func() (err error) {
		out.ExpensesTotal, err = s.source.ExpensesTotal(gctx, p)
		return wrap("expenses total", err)
	})
	g.Go(func() (err error) {
		out.SalesByDay, err = s.source.SalesByDay(gctx, p)
		return wrap("sales by day", err)
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	out.NetProfit = out.SalesTotal.Sub(out.PurchasesTotal).Sub(out.ExpensesTotal)
	if out.SalesByDay == nil {
		out.SalesByDay = []DaySales{}
	}
	return out, nil
}

// fetch serves key from the cache, collapsing concurrent misses. A cache
// outage degrades to a direct build.
func fetch[T any](ctx context.Context, s *Service, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return build(ctx)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var (
			out      T
			buildErr error
		)
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			value, err := build(ctx)
			buildErr = err
			return value, err
		})
		if err != nil && buildErr == nil {
			s.logger.Warn("report cache unavailable", slog.String("key", key), slog.Any("error", err))
			return build(ctx)
		}
		return out, err
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// fillDays expands rows to one entry per day of p, zero-filling gaps.
func fillDays(p Period, rows []DaySales) []DaySales {
	index := make(map[string]DaySales, len(rows))
	for _, r := range rows {
		index[r.Date.String()] = r
	}
	var out []DaySales
	for day := p.From; day.Before(p.To); day = day.AddDate(0, 0, 1) {
		d := shared.NewDate(day)
		if r, ok := index[d.String()]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, DaySales{Date: d, Total: decimal.Zero})
	}
	return out
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("reports: %s: %w", what, err)
}
