package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lotkeeper/lotkeeper/internal/inventory"
)

type stubReconciler struct {
	recs []inventory.Reconciliation
}

func (s *stubReconciler) ReconcileAll(context.Context) ([]inventory.Reconciliation, error) {
	return s.recs, nil
}

type stubGauge struct {
	drift int
	set   bool
}

func (g *stubGauge) SetLedgerDrift(batches int) {
	g.drift = batches
	g.set = true
}

func TestLedgerReconcileReportsDrift(t *testing.T) {
	stock := &stubReconciler{recs: []inventory.Reconciliation{
		{BatchID: "B-OK", StartingQty: 0, QtyIn: 10, QtyOut: 4, CurrentQty: 6},
		{BatchID: "B-DRIFT", StartingQty: 0, QtyIn: 10, QtyOut: 0, CurrentQty: 7},
	}}
	gauge := &stubGauge{}
	job := NewLedgerReconcileJob(stock, gauge, nil)

	require.NoError(t, job.Handle(context.Background(), NewLedgerReconcileTask()))
	require.True(t, gauge.set)
	require.Equal(t, 1, gauge.drift)
}

func TestLedgerReconcileZeroDrift(t *testing.T) {
	gauge := &stubGauge{}
	job := NewLedgerReconcileJob(&stubReconciler{}, gauge, nil)

	require.NoError(t, job.Handle(context.Background(), NewLedgerReconcileTask()))
	require.True(t, gauge.set)
	require.Zero(t, gauge.drift)
}

type stubCleaner struct {
	gotTTL  time.Duration
	removed int64
}

func (s *stubCleaner) CleanupFileHashes(_ context.Context, ttl time.Duration) (int64, error) {
	s.gotTTL = ttl
	return s.removed, nil
}

func TestImportsCleanupPassesTTL(t *testing.T) {
	cleaner := &stubCleaner{removed: 3}
	job := NewImportsCleanupJob(cleaner, 720*time.Hour, nil)

	require.NoError(t, job.Handle(context.Background(), NewImportsDedupeCleanupTask()))
	require.Equal(t, 720*time.Hour, cleaner.gotTTL)
}
