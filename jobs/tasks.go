package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotWarmup refreshes the shared stock snapshot.
	TaskSnapshotWarmup = "snapshot:warmup"
)

// SnapshotWarmupPayload describes one warmup run.
type SnapshotWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewSnapshotWarmupTask constructs the warmup task.
func NewSnapshotWarmupTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "scheduled"
	}
	data, err := json.Marshal(SnapshotWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotWarmup, data), nil
}
