package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/types"
)

// Prune applies retention to every rotating snapshot without rotating or
// publishing anything. A dry run lists the snapshots that would be dropped
// in Pruned and issues no command.
func (r Reconciler) Prune(ctx context.Context, cfg types.Config, dryRun bool) (types.RunReport, error) {
	if err := r.ready(); err != nil {
		return types.RunReport{}, err
	}
	run, err := r.begin(ctx, cfg)
	if err != nil {
		return types.RunReport{}, err
	}
	for _, name := range types.SortedKeys(cfg.Snapshots) {
		snapshot := cfg.Snapshots[name]
		if !snapshot.IsRotating() {
			continue
		}
		if !dryRun {
			if err := r.applyRetention(ctx, run, snapshot); err != nil {
				return run.report, err
			}
			continue
		}
		plan, err := r.retentionPlan(ctx, run, snapshot)
		if err != nil {
			return run.report, err
		}
		for _, item := range plan.Delete {
			run.report.Pruned = append(run.report.Pruned, item.SnapshotID)
		}
	}
	log.Ctx(ctx).Info().
		Bool("dry_run", dryRun).
		Strs("pruned", run.report.Pruned).
		Msg("prune finished")
	return run.report, nil
}
