package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockgate/internal/backend"
	jobmetrics "github.com/odyssey-erp/stockgate/internal/jobs"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Refresher reloads the stock snapshot with the given token.
type Refresher interface {
	Refresh(ctx context.Context, token string) (*snapshot.Snapshot, error)
}

// SnapshotWarmupJob keeps the shared snapshot hot so the first guarded
// request after expiry does not pay for the product list.
type SnapshotWarmupJob struct {
	Snapshots Refresher
	Token     string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewSnapshotWarmupJob wires dependencies for the warmup handler.
func NewSnapshotWarmupJob(snapshots Refresher, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotWarmupJob {
	return &SnapshotWarmupJob{
		Snapshots: snapshots,
		Token:     token,
		Logger:    logger,
		Metrics:   metrics,
		Timeout:   30 * time.Second,
	}
}

// Handle processes snapshot warmup tasks.
func (j *SnapshotWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Snapshots == nil {
		return errors.New("snapshot warmup: handler not configured")
	}
	var payload SnapshotWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("snapshot warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger().With(slog.String("reason", payload.Reason))
	if j.Token == "" {
		logger.Debug("no service token configured, skipping warmup")
		return nil
	}

	tracker := j.metrics().Track(TaskSnapshotWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := j.Snapshots.Refresh(ctx, j.Token)
	if err != nil {
		resultErr = err
		logger.Error("refresh stock snapshot", slog.Any("error", err))
		if errors.Is(err, backend.ErrUnauthorized) {
			return fmt.Errorf("snapshot warmup: service token rejected: %w", asynq.SkipRetry)
		}
		return resultErr
	}
	j.metrics().SetSnapshotSize(len(snap.Products))
	logger.Info("warmed stock snapshot", slog.Int("products", len(snap.Products)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SnapshotWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSnapshotWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSnapshotWarmup))
}

func (j *SnapshotWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
