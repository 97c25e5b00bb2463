package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lotkeeper/lotkeeper/internal/planner"
)

// PlannerSnapshotJob recomputes the planner snapshot on schedule.
type PlannerSnapshotJob struct {
	Planner          *planner.Service
	Logger           *slog.Logger
	DefaultWarehouse string
}

// NewPlannerSnapshotJob wires dependencies for the snapshot handler.
func NewPlannerSnapshotJob(svc *planner.Service, logger *slog.Logger, defaultWarehouse string) *PlannerSnapshotJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlannerSnapshotJob{Planner: svc, Logger: logger, DefaultWarehouse: defaultWarehouse}
}

// Handle processes planner snapshot tasks.
func (j *PlannerSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Planner == nil {
		return errors.New("planner snapshot: handler not configured")
	}
	var payload PlannerSnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	warehouseID := payload.WarehouseID
	if warehouseID == "" {
		warehouseID = j.DefaultWarehouse
	}

	rows, err := j.Planner.Snapshot(ctx, warehouseID)
	if err != nil {
		j.Logger.Error("planner snapshot failed",
			slog.String("warehouse", warehouseID), slog.Any("error", err))
		return err
	}
	j.Logger.Info("planner snapshot refreshed",
		slog.String("warehouse", warehouseID), slog.Int("rows", rows))
	return nil
}
