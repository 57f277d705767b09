package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDeliver is the asynq task type for queued deliveries.
const TaskTypeDeliver = "notification:deliver"

// DeliverTaskPayload references the delivery log the worker should send.
type DeliverTaskPayload struct {
	LogID string `json:"log_id"`
}

// NewDeliverTask creates the task for logID.
func NewDeliverTask(logID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverTaskPayload{LogID: logID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDeliver, payload), nil
}

// ParseDeliverTaskPayload deserializes the task payload.
func ParseDeliverTaskPayload(data []byte) (*DeliverTaskPayload, error) {
	var p DeliverTaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.LogID == "" {
		return nil, fmt.Errorf("task payload missing log_id")
	}
	return &p, nil
}
