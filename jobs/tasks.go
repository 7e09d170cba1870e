package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSiteProfitSnapshot captures the site profit report for a window.
	TaskSiteProfitSnapshot = "siteprofit:snapshot"
)

const payloadDateLayout = "2006-01-02"

// SiteProfitSnapshotPayload describes the reporting window to capture. Empty
// bounds mean month-to-date at the time the task runs.
type SiteProfitSnapshotPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// NewSiteProfitSnapshotTask constructs an Asynq task for the given window.
// Zero times leave the window to be resolved when the task runs.
func NewSiteProfitSnapshotTask(from, to time.Time) (*asynq.Task, error) {
	payload := SiteProfitSnapshotPayload{}
	if !from.IsZero() {
		payload.From = from.Format(payloadDateLayout)
	}
	if !to.IsZero() {
		payload.To = to.Format(payloadDateLayout)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSiteProfitSnapshot, data), nil
}
