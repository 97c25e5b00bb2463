package planner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

var listGroup singleflight.Group

// Service exposes planner reads and the snapshot refresh.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService builds the planner service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Snapshot recomputes the planner verdict for every SKU at the given
// warehouse, replaces the persisted snapshot and invalidates the cache. It
// returns the number of rows written.
func (s *Service) Snapshot(ctx context.Context, warehouseID string) (int, error) {
	sources, err := s.repo.ListSourceRows(ctx, warehouseID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	snapshot := make([]SnapshotRow, 0, len(sources))
	for _, src := range sources {
		outputs := BuildOutputs(Inputs{
			Product:                src.Product,
			ADU:                    src.ADU,
			OnHand:                 src.OnHand,
			FBAStock:               src.FBAStock,
			OrderedUnits:           src.OrderedUnits,
			SellerboardRecommended: src.SellerboardRecommended,
			AvgUnitCost:            src.AvgUnitCost,
		})
		snapshot = append(snapshot, SnapshotRow{
			SKU:                     src.Product.SKU,
			ComputedAt:              now,
			ADU:                     src.ADU,
			OnHand:                  src.OnHand,
			FBAStock:                src.FBAStock,
			OrderedUnits:            src.OrderedUnits,
			SellerboardRecommended:  src.SellerboardRecommended,
			ReorderQty:              outputs.ReorderQty,
			SendToFBA:               outputs.SendToFBA,
			LowFBAFlag:              outputs.LowFBAFlag,
			LessThanSellerboardFlag: outputs.LessThanSellerboardFlag,
			ExcessUnits:             outputs.ExcessUnits,
			ExcessValue:             outputs.ExcessValue,
		})
	}
	if err := s.repo.ReplaceSnapshot(ctx, snapshot); err != nil {
		return 0, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("planner cache bump failed", slog.Any("error", err))
	}
	return len(snapshot), nil
}

// List returns the current snapshot, served from cache when warm.
func (s *Service) List(ctx context.Context) ([]SnapshotRow, error) {
	key, err := s.cache.BuildKey(ctx)
	if err != nil {
		return nil, err
	}
	var rows []SnapshotRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		// Collapse concurrent cache misses into a single snapshot read.
		ch := listGroup.DoChan(key, func() (any, error) {
			return s.repo.ListSnapshot(ctx)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.Val, res.Err
		}
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []SnapshotRow{}
	}
	return rows, nil
}
