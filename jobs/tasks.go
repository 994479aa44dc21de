package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFXFallbackRefresh refreshes the cached backend fallback rate.
	TaskFXFallbackRefresh = "fx:fallback:refresh"
)

// FXFallbackPayload selects the pair to refresh. AsOf is YYYY-MM-DD; empty
// means the day the job runs.
type FXFallbackPayload struct {
	Pair string `json:"pair"`
	AsOf string `json:"as_of,omitempty"`
}

// NewFXFallbackRefreshTask constructs an Asynq task.
func NewFXFallbackRefreshTask(pair string) (*asynq.Task, error) {
	data, err := json.Marshal(FXFallbackPayload{Pair: strings.ToUpper(strings.TrimSpace(pair))})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFXFallbackRefresh, data), nil
}
