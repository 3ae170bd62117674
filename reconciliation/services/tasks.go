package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"welfare-receipts-backend/db/models"

	"github.com/hibiken/asynq"
)

// TypeLinkageRepair is the asynq task that repairs one recorded linkage anomaly
const TypeLinkageRepair = "linkage:repair"

type LinkageRepairPayload struct {
	Kind      models.AnomalyKind `json:"kind"`
	EntityKey string             `json:"entity_key"`
}

func NewLinkageRepairTask(kind models.AnomalyKind, entityKey string) (*asynq.Task, error) {
	payload, err := json.Marshal(LinkageRepairPayload{Kind: kind, EntityKey: entityKey})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLinkageRepair, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.TaskID(fmt.Sprintf("%s:%s", kind, entityKey)),
	), nil
}

// TaskEnqueuer is satisfied by *asynq.Client
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// HandleLinkageRepairTask is registered on the asynq server mux
func (s *ReconciliationService) HandleLinkageRepairTask(ctx context.Context, t *asynq.Task) error {
	var payload LinkageRepairPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", TypeLinkageRepair, err, asynq.SkipRetry)
	}
	return s.RepairByKey(ctx, payload.Kind, payload.EntityKey)
}
