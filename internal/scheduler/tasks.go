package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPendingDeliveryDigest = "leads.delivery.digest"

// DefaultOlderThanMinutes is the digest cutoff when no override is given.
const DefaultOlderThanMinutes = 30

// PendingDeliveryDigestPayload selects which stuck deliveries the digest
// covers. Leads younger than OlderThanMinutes are left out so freshly
// created leads mid-delivery do not page anyone.
type PendingDeliveryDigestPayload struct {
	OlderThanMinutes int `json:"olderThanMinutes"`
}

func NewPendingDeliveryDigestTask(payload PendingDeliveryDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPendingDeliveryDigest, data), nil
}

func ParsePendingDeliveryDigestPayload(task *asynq.Task) (PendingDeliveryDigestPayload, error) {
	var payload PendingDeliveryDigestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PendingDeliveryDigestPayload{}, err
	}
	return payload, nil
}
