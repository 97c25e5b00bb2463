package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskPlannerSnapshot recomputes the planner snapshot for a warehouse.
	TaskPlannerSnapshot = "planner:snapshot"
	// TaskLedgerReconcile sweeps every batch against the stock ledger.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskImportsDedupeCleanup evicts expired import file hashes.
	TaskImportsDedupeCleanup = "imports:dedupe_cleanup"
)

// PlannerSnapshotPayload scopes a snapshot run to one warehouse.
type PlannerSnapshotPayload struct {
	WarehouseID string `json:"warehouse_id"`
}

// NewPlannerSnapshotTask constructs the snapshot task.
func NewPlannerSnapshotTask(payload PlannerSnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPlannerSnapshot, data), nil
}

// NewLedgerReconcileTask constructs the reconcile sweep task.
func NewLedgerReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerReconcile, nil)
}

// NewImportsDedupeCleanupTask constructs the dedupe eviction task.
func NewImportsDedupeCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskImportsDedupeCleanup, nil)
}
