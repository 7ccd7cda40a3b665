package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// snapshotCreate creates the current snapshot of every selected template
// that does not exist yet, together with the merge and filter sources it
// needs.
func (r Reconciler) snapshotCreate(ctx context.Context, run *convergence, names []string) error {
	b := newBatch()
	for _, name := range names {
		if err := r.ensureSnapshot(run, b, types.SnapshotRef{Name: name}); err != nil {
			return err
		}
	}
	return r.execute(ctx, run, b.commands)
}

// snapshotUpdate rotates the selected rotating snapshots, creates whatever
// current snapshot is missing, switches the publishes bound to a rotated
// snapshot and finally prunes old rotations.
func (r Reconciler) snapshotUpdate(ctx context.Context, run *convergence, names []string) error {
	b := newBatch()
	var rotating []types.Snapshot
	for _, name := range names {
		snapshot := run.cfg.Snapshots[name]
		if !snapshot.IsRotating() {
			continue
		}
		rotating = append(rotating, snapshot)
		if err := r.planRotation(run, b, snapshot); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := r.ensureSnapshot(run, b, types.SnapshotRef{Name: name}); err != nil {
			return err
		}
	}
	if err := r.execute(ctx, run, b.commands); err != nil {
		return err
	}
	if len(rotating) == 0 {
		return nil
	}

	for _, name := range types.SortedKeys(run.cfg.Publishes) {
		for _, publish := range run.cfg.Publishes[name] {
			if !bindsRotated(run, publish) || !publish.AutoUpdate() || !run.state.Publishes.Has(publish.ID()) {
				continue
			}
			if err := r.publishUpdate(ctx, run, publish); err != nil {
				return err
			}
		}
	}
	for _, snapshot := range rotating {
		if err := r.applyRetention(ctx, run, snapshot); err != nil {
			return err
		}
	}
	return nil
}

// ensureSnapshot plans the creation of a declared snapshot and its sources
// when they are absent. Literal names and back references to earlier slots
// are never created; they must already exist.
func (r Reconciler) ensureSnapshot(run *convergence, b *batch, ref types.SnapshotRef) error {
	declared, ok := run.cfg.Snapshots[ref.Name]
	if !ok {
		return nil
	}
	steps, err := ParseBackReference(ref.Timestamp)
	if err != nil {
		return err
	}
	if steps > 0 {
		return nil
	}
	name, err := SnapshotName(run.cfg, ref, run.now)
	if err != nil {
		return err
	}
	if run.state.Snapshots.Has(name) || b.snapshots.Has(name) {
		return nil
	}
	b.snapshots.Add(name)
	if declared.Repo != "" {
		r.ensureRepo(run, b, declared.Repo)
	}
	for _, source := range declared.Sources() {
		if err := r.ensureSnapshot(run, b, source); err != nil {
			return err
		}
	}
	command, err := snapshotCommand(run, declared, name)
	if err != nil {
		return err
	}
	b.add(command)
	return nil
}

// planRotation renames the stable snapshot to its rotate_via name and
// re-creates it. Rotating sources rotate first so the new snapshot is built
// from fresh content. A snapshot rotates at most once per run.
func (r Reconciler) planRotation(run *convergence, b *batch, snapshot types.Snapshot) error {
	if run.rotated.Has(snapshot.Name) {
		return nil
	}
	run.rotated.Add(snapshot.Name)
	for _, source := range snapshot.Sources() {
		declared, ok := run.cfg.Snapshots[source.Name]
		if ok && declared.IsRotating() {
			if err := r.planRotation(run, b, declared); err != nil {
				return err
			}
			continue
		}
		if err := r.ensureSnapshot(run, b, source); err != nil {
			return err
		}
	}
	if declaredRepo := snapshot.Repo; declaredRepo != "" {
		r.ensureRepo(run, b, declaredRepo)
	}

	recreate, err := snapshotCommand(run, snapshot, snapshot.Name)
	if err != nil {
		return err
	}
	if run.state.Snapshots.Has(snapshot.Name) {
		from := snapshot.Name
		to := ExpandName(snapshot.RotateVia, run.now)
		b.add(NewCommand("snapshot", "rename", from, to).
			Provide(types.EntityRotation, from).
			Provide(types.EntitySnapshot, to).
			OnSuccess(func(state *types.SystemState) { state.RenameSnapshot(from, to) }))
		recreate.Require(types.EntityRotation, from)
	}
	b.snapshots.Add(snapshot.Name)
	b.add(recreate)
	return nil
}

func snapshotCommand(run *convergence, snapshot types.Snapshot, name string) (*Command, error) {
	var command *Command
	switch {
	case snapshot.Mirror != "":
		command = NewCommand("snapshot", "create", name, "from", "mirror", snapshot.Mirror).
			Require(types.EntityMirror, snapshot.Mirror)
	case snapshot.Repo != "":
		command = NewCommand("snapshot", "create", name, "from", "repo", snapshot.Repo).
			Require(types.EntityRepo, snapshot.Repo)
	case len(snapshot.Merge) > 0:
		args := []string{"snapshot", "merge", name}
		sources := make([]string, 0, len(snapshot.Merge))
		for _, ref := range snapshot.Merge {
			source, err := SnapshotName(run.cfg, ref, run.now)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source)
		}
		command = NewCommand(append(args, sources...)...)
		for _, source := range sources {
			command.Require(types.EntitySnapshot, source)
		}
	case snapshot.Filter != nil:
		source, err := SnapshotName(run.cfg, snapshot.Filter.Source, run.now)
		if err != nil {
			return nil, err
		}
		args := []string{"snapshot", "filter"}
		if snapshot.Filter.WithDeps {
			args = append(args, "-with-deps")
		}
		args = append(args, source, name, snapshot.Filter.Query)
		command = NewCommand(args...).Require(types.EntitySnapshot, source)
	default:
		return nil, shared.InvalidConfig("snapshot %s has no source", snapshot.Name)
	}
	return command.
		Provide(types.EntitySnapshot, name).
		OnSuccess(func(state *types.SystemState) { state.Snapshots.Add(name) }), nil
}

// bindsRotated reports whether a publish serves a snapshot rotated in this
// run.
func bindsRotated(run *convergence, publish types.Publish) bool {
	for _, ref := range publish.Snapshots {
		if run.rotated.Has(ref.Name) {
			return true
		}
	}
	return false
}

// applyRetention drops rotated copies of a snapshot that fall outside its
// retention. Snapshots still served by a publish are kept. Each drop is
// attempted at most once per run; failures are logged and skipped.
func (r Reconciler) applyRetention(ctx context.Context, run *convergence, snapshot types.Snapshot) error {
	plan, err := r.retentionPlan(ctx, run, snapshot)
	if err != nil {
		return err
	}
	b := newBatch()
	var attempted []string
	for _, item := range plan.Delete {
		name := item.SnapshotID
		if run.dropped.Has(name) {
			continue
		}
		run.dropped.Add(name)
		attempted = append(attempted, name)
		b.add(NewCommand("snapshot", "drop", name).
			BestEffort().
			OnSuccess(func(state *types.SystemState) { state.Snapshots.Remove(name) }))
	}
	if err := r.execute(ctx, run, b.commands); err != nil {
		return err
	}
	for _, name := range attempted {
		if !run.state.Snapshots.Has(name) {
			run.report.Pruned = append(run.report.Pruned, name)
		}
	}
	log.Ctx(ctx).Debug().
		Str("snapshot", snapshot.Name).
		Int("kept", len(plan.Keep)).
		Int("dropped", len(attempted)).
		Msg("retention applied")
	return nil
}

// retentionPlan splits the rotated copies of a snapshot into kept and
// dropped ones. Without a retention everything is kept.
func (r Reconciler) retentionPlan(ctx context.Context, run *convergence, snapshot types.Snapshot) (types.SnapshotPrunePlan, error) {
	retention := retentionFor(run.cfg, snapshot)
	if retention.IsZero() {
		return types.SnapshotPrunePlan{}, nil
	}
	maxAge, err := ParseRetentionAge(retention.MaxAge)
	if err != nil {
		return types.SnapshotPrunePlan{}, err
	}
	pattern := NamePattern(snapshot.RotateVia)
	var candidates []types.SnapshotInfo
	for _, name := range run.state.Snapshots.Sorted() {
		if !pattern.MatchString(name) {
			continue
		}
		createdAt, ok := TimestampFromName(snapshot.RotateVia, name)
		if !ok {
			record, err := r.State.ShowSnapshot(ctx, name)
			if err != nil {
				return types.SnapshotPrunePlan{}, err
			}
			createdAt = record.CreatedAt
		}
		channel, _ := run.state.PublishedBy(name)
		candidates = append(candidates, types.SnapshotInfo{
			Source:     snapshot.Name,
			SnapshotID: name,
			Channel:    channel,
			CreatedAt:  createdAt,
		})
	}
	return BuildPrunePlan(candidates, types.SnapshotRetentionPolicy{
		KeepLast:        retention.Count,
		MaxAge:          maxAge,
		ProtectChannels: run.state.Publishes.Sorted(),
	}, run.now), nil
}

// retentionFor prefers the snapshot's own retention and falls back to the
// first publish (by name) that binds it and declares one.
func retentionFor(cfg types.Config, snapshot types.Snapshot) *types.Retention {
	if !snapshot.Retention.IsZero() {
		return snapshot.Retention
	}
	for _, name := range types.SortedKeys(cfg.Publishes) {
		for _, publish := range cfg.Publishes[name] {
			if publish.Retention.IsZero() {
				continue
			}
			for _, ref := range publish.Snapshots {
				if ref.Name == snapshot.Name {
					return publish.Retention
				}
			}
		}
	}
	return nil
}
