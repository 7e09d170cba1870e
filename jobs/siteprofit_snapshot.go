package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitebooks/sitebooks/internal/jobs"
	"github.com/sitebooks/sitebooks/internal/siteprofit"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotCapturer stores the site profit report for a window.
type SnapshotCapturer interface {
	Capture(ctx context.Context, from, to time.Time) (int, error)
}

// SiteProfitSnapshotJob persists a site profit snapshot for the requested window.
type SiteProfitSnapshotJob struct {
	Snapshots SnapshotCapturer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewSiteProfitSnapshotJob wires dependencies for the snapshot handler.
func NewSiteProfitSnapshotJob(snapshots SnapshotCapturer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SiteProfitSnapshotJob {
	return &SiteProfitSnapshotJob{
		Snapshots: snapshots,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes site profit snapshot tasks.
func (j *SiteProfitSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Snapshots == nil {
		return errors.New("siteprofit snapshot: handler not configured")
	}
	var payload SiteProfitSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("siteprofit snapshot: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	from, to, err := j.window(payload)
	if err != nil {
		return fmt.Errorf("siteprofit snapshot: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskSiteProfitSnapshot)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("from", from.Format(payloadDateLayout)),
		slog.String("to", to.Format(payloadDateLayout)),
	)
	logger.Info("starting site profit snapshot")

	started := time.Now()
	stored, err := j.Snapshots.Capture(ctx, from, to)
	if err != nil {
		resultErr = err
		logger.Error("capture site profit snapshot", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddProcessed(TaskSiteProfitSnapshot, stored)
	logger.Info("completed site profit snapshot", slog.Int("sites", stored), slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *SiteProfitSnapshotJob) window(payload SiteProfitSnapshotPayload) (time.Time, time.Time, error) {
	if payload.From == "" && payload.To == "" {
		from, to := siteprofit.MonthToDate(j.now())
		return from, to, nil
	}
	if payload.From == "" || payload.To == "" {
		return time.Time{}, time.Time{}, errors.New("from and to must be supplied together")
	}
	window, err := siteprofit.ParseFilter("", payload.From, payload.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return window.From, window.To, nil
}

func (j *SiteProfitSnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSiteProfitSnapshot))
	}
	return slog.Default().With(slog.String("job", TaskSiteProfitSnapshot))
}

func (j *SiteProfitSnapshotJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SiteProfitSnapshotJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
