package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cxp-circuitos/cxp/internal/jobs"
)

const summaryWarmupJobName = "cxp_summary_warmup"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer precomputes cached summaries and reports how many it built.
type Warmer interface {
	Warmup(ctx context.Context) (int, error)
}

// SummaryWarmupJob fills the summary cache after edits and on a schedule.
type SummaryWarmupJob struct {
	Warmer  Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(warmer Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{Warmer: warmer, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Warmer == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return errors.Join(err, asynq.SkipRetry)
		}
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(summaryWarmupJobName)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	if payload.Version > 0 {
		logger = logger.With(slog.Int64("version", payload.Version))
	}
	start := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	warmed, err := j.Warmer.Warmup(ctx)
	j.metrics().AddWarmed(warmed)
	if err != nil {
		logger.Error("summary warmup failed", slog.Int("warmed", warmed), slog.Any("error", err))
		return err
	}
	logger.Info("summary warmup completed", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", summaryWarmupJobName))
	}
	return slog.Default().With(slog.String("job", summaryWarmupJobName))
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
