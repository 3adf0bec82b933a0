package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storekeep/storekeep/internal/jobs"
)

// DefaultRequestKeyRetention is how long replayable request keys are kept.
const DefaultRequestKeyRetention = 7 * 24 * time.Hour

// KeyCleaner removes request keys older than a retention window.
// *shared.IdempotencyStore satisfies it.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RequestKeysCleanupJob purges expired request keys.
type RequestKeysCleanupJob struct {
	Keys      KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskRequestKeysCleanup tasks.
func (j *RequestKeysCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("request keys cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskRequestKeysCleanup)
	defer func() { err = tracker.End(err) }()

	retention := j.Retention
	if retention <= 0 {
		retention = DefaultRequestKeyRetention
	}
	logger := loggerOr(j.Logger).With(slog.String("job", TaskRequestKeysCleanup))
	removed, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("purge request keys", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPurgedKeys(removed)
	logger.Info("request keys purged", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}
