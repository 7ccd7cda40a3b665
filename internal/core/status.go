package core

import (
	"context"

	"aptlyctl/internal/types"
)

// Status reports, for every declared publish, the snapshots it should serve
// at the reconciler's current time next to the ones it serves now. Nothing
// is planned or executed. A rotating publish is in sync once its stable
// snapshots are bound; rotation itself only happens on update.
func (r Reconciler) Status(ctx context.Context, cfg types.Config) ([]types.PublishStatus, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	run, err := r.begin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var statuses []types.PublishStatus
	for _, name := range types.SortedKeys(cfg.Publishes) {
		for _, publish := range cfg.Publishes[name] {
			statuses = append(statuses, r.publishStatus(run, publish))
		}
	}
	return statuses, nil
}

func (r Reconciler) publishStatus(run *convergence, publish types.Publish) types.PublishStatus {
	id := publish.ID()
	status := types.PublishStatus{
		ID:      id,
		Variant: PublishVariantOf(run.cfg, publish),
		Present: run.state.Publishes.Has(id),
		Actual:  run.state.PublishMap[id].Sorted(),
	}
	if status.Variant == types.PublishVariantRepo {
		status.InSync = status.Present
		return status
	}
	_, names, err := r.desiredSources(run, newBatch(), publish)
	if err != nil {
		status.Problem = err.Error()
		return status
	}
	desired := types.NewSet(names...)
	status.Desired = desired.Sorted()
	status.InSync = status.Present && desired.Equal(run.state.PublishMap[id])
	return status
}
