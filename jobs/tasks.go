package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending store e-mails.
	TaskTypeSendEmail = "mail:send"
	// TaskLowStockScan lists products below their reorder level.
	TaskLowStockScan = "catalog:low_stock_scan"
	// TaskRequestKeysCleanup purges expired request keys.
	TaskRequestKeysCleanup = "ledger:request_keys_cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// NewRequestKeysCleanupTask constructs the cleanup task.
func NewRequestKeysCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskRequestKeysCleanup, nil)
}

// MailHandler processes TaskTypeSendEmail tasks. Delivery is a log line until
// an SMTP relay is configured.
type MailHandler struct {
	Logger *slog.Logger
}

// Handle processes TaskTypeSendEmail tasks.
func (h MailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return errors.Join(errors.New("mail: recipient required"), asynq.SkipRetry)
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("send email", slog.String("to", payload.To), slog.String("subject", payload.Subject), slog.Int("body_bytes", len(payload.Body)))
	return nil
}
