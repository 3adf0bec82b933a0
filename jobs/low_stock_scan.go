package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/storekeep/storekeep/internal/catalog"
	jobmetrics "github.com/storekeep/storekeep/internal/jobs"
)

// LowStockLister returns products below their reorder level.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]catalog.Product, error)
}

// StoreEmailSource returns the alert address, empty when unset.
type StoreEmailSource interface {
	StoreEmail(ctx context.Context) (string, error)
}

// Mailer enqueues outgoing e-mail. *Client satisfies it.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob e-mails the store a list of products that need reordering.
type LowStockScanJob struct {
	Products LowStockLister
	Store    StoreEmailSource
	Mailer   Mailer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	logger := loggerOr(j.Logger).With(slog.String("job", TaskLowStockScan))
	products, err := j.Products.LowStock(ctx)
	if err != nil {
		logger.Error("list low stock", slog.Any("error", err))
		return err
	}
	j.Metrics.SetLowStock(len(products))
	if len(products) == 0 {
		logger.Info("no products below reorder level")
		return nil
	}
	if j.Store == nil || j.Mailer == nil {
		logger.Info("low stock found, alerts disabled", slog.Int("products", len(products)))
		return nil
	}
	to, err := j.Store.StoreEmail(ctx)
	if err != nil {
		logger.Error("load store email", slog.Any("error", err))
		return err
	}
	if to == "" {
		logger.Info("low stock found, store email not set", slog.Int("products", len(products)))
		return nil
	}
	if _, err := j.Mailer.EnqueueSendEmail(ctx, LowStockEmail(to, products)); err != nil {
		logger.Error("enqueue low stock email", slog.Any("error", err))
		return err
	}
	logger.Info("low stock alert queued", slog.Int("products", len(products)), slog.String("to", to))
	return nil
}

// LowStockEmail formats the alert listing each product with its quantity and
// reorder level.
func LowStockEmail(to string, products []catalog.Product) SendEmailPayload {
	var b strings.Builder
	b.WriteString("The following products are below their reorder level:\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: %s %s on hand (reorder at %s)\n", p.Name, p.Quantity.String(), p.Unit, p.ReorderLevel.String())
	}
	return SendEmailPayload{
		To:      to,
		Subject: fmt.Sprintf("Low stock: %d product(s) need reordering", len(products)),
		Body:    b.String(),
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
