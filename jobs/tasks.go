package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillingSweep is the task type for the periodic billing sweep.
	TaskBillingSweep = "billing:sweep"
)

// BillingSweepPayload parameterises one sweep run. AsOf overrides the
// reference date, mainly for replaying a missed day.
type BillingSweepPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// NewBillingSweepTask constructs an Asynq task for the billing sweep.
func NewBillingSweepTask(payload BillingSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingSweep, data), nil
}
