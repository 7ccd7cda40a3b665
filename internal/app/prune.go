package app

import (
	"context"
)

// Prune applies the declared retention of every rotating snapshot without
// rotating anything first.
func (s Service) Prune(ctx context.Context, req PruneRequest) (PruneResult, error) {
	cfg, err := s.LoadConfig(ctx, req.ConfigPath)
	if err != nil {
		return PruneResult{}, err
	}
	report, err := s.reconciler().Prune(ctx, cfg, req.DryRun)
	if err != nil {
		return PruneResult{}, err
	}
	return PruneResult{
		DeleteCount: len(report.Pruned),
		Deleted:     report.Pruned,
		Skipped:     report.Skipped,
		DryRun:      req.DryRun,
	}, nil
}
