package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup precomputes dashboard summaries into the cache.
	TaskSummaryWarmup = "cxp:summary_warmup"
)

// warmupDebounce collapses bursts of edits into a single warmup run.
const warmupDebounce = 30 * time.Second

// SummaryWarmupPayload records why a warmup was requested.
type SummaryWarmupPayload struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version,omitempty"`
}

// NewSummaryWarmupTask constructs an Asynq task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}
