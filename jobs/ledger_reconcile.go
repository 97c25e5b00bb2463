package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lotkeeper/lotkeeper/internal/inventory"
)

// ReconcilePort is the reconcile sweep the job runs.
type ReconcilePort interface {
	ReconcileAll(ctx context.Context) ([]inventory.Reconciliation, error)
}

// DriftGauge receives the number of drifted batches.
type DriftGauge interface {
	SetLedgerDrift(batches int)
}

// LedgerReconcileJob sweeps every batch against the ledger and reports
// drift. Drift means someone changed a quantity outside the commit path.
type LedgerReconcileJob struct {
	Stock   ReconcilePort
	Metrics DriftGauge
	Logger  *slog.Logger
}

// NewLedgerReconcileJob wires dependencies for the reconcile handler.
func NewLedgerReconcileJob(stock ReconcilePort, metrics DriftGauge, logger *slog.Logger) *LedgerReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerReconcileJob{Stock: stock, Metrics: metrics, Logger: logger}
}

// Handle processes reconcile sweep tasks.
func (j *LedgerReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	recs, err := j.Stock.ReconcileAll(ctx)
	if err != nil {
		j.Logger.Error("ledger reconcile failed", slog.Any("error", err))
		return err
	}
	drifted := 0
	for _, rec := range recs {
		if rec.Balanced() {
			continue
		}
		drifted++
		j.Logger.Warn("ledger drift detected",
			slog.String("batch", rec.BatchID),
			slog.Int64("expected", rec.Expected()),
			slog.Int64("current", rec.CurrentQty))
	}
	if j.Metrics != nil {
		j.Metrics.SetLedgerDrift(drifted)
	}
	j.Logger.Info("ledger reconcile finished",
		slog.Int("batches", len(recs)), slog.Int("drifted", drifted))
	return nil
}
