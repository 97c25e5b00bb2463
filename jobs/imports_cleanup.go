package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// HashCleanupPort evicts expired import file hashes.
type HashCleanupPort interface {
	CleanupFileHashes(ctx context.Context, ttl time.Duration) (int64, error)
}

// ImportsCleanupJob trims the import dedupe ledger so re-imports become
// possible after the retention window.
type ImportsCleanupJob struct {
	Imports HashCleanupPort
	TTL     time.Duration
	Logger  *slog.Logger
}

// NewImportsCleanupJob wires dependencies for the cleanup handler.
func NewImportsCleanupJob(imports HashCleanupPort, ttl time.Duration, logger *slog.Logger) *ImportsCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportsCleanupJob{Imports: imports, TTL: ttl, Logger: logger}
}

// Handle processes dedupe cleanup tasks.
func (j *ImportsCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Imports == nil {
		return errors.New("imports cleanup: handler not configured")
	}
	removed, err := j.Imports.CleanupFileHashes(ctx, j.TTL)
	if err != nil {
		j.Logger.Error("imports dedupe cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("imports dedupe cleanup finished", slog.Int64("removed", removed))
	return nil
}
