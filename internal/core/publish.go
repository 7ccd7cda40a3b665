package core

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// PublishVariantOf tags a publish by its binding.
func PublishVariantOf(cfg types.Config, publish types.Publish) types.PublishVariant {
	switch {
	case publish.Publish != "":
		return types.PublishVariantRepublish
	case publish.Repo != "":
		return types.PublishVariantRepo
	}
	for _, ref := range publish.Snapshots {
		if snapshot, ok := cfg.Snapshots[ref.Name]; ok && snapshot.IsRotating() {
			return types.PublishVariantRotating
		}
	}
	return types.PublishVariantSimple
}

// publishes handles every distribution of the selected publishes one at a
// time, in name order. Each publish is planned against the state left by
// the previous one, so a republish sorted after its upstream sees the
// upstream's new snapshots while one sorted before it lags one run behind.
// In bulk runs a republish whose upstream does not exist yet is skipped and
// picked up by the next run.
func (r Reconciler) publishes(ctx context.Context, run *convergence, names []string, action types.Action, bulk bool) error {
	for _, name := range names {
		for _, publish := range run.cfg.Publishes[name] {
			var err error
			switch {
			case bulk && upstreamMissing(run, publish):
				log.Ctx(ctx).Info().
					Str("publish", publish.ID()).
					Str("upstream", publish.Publish).
					Msg("upstream publish not present yet, skipping")
				run.report.Skipped = append(run.report.Skipped, "publish "+publish.ID())
			case action == types.ActionCreate:
				err = r.publishCreate(ctx, run, publish)
			case bulk && !publish.AutoUpdate():
				log.Ctx(ctx).Info().Str("publish", publish.ID()).Msg("automatic update disabled, skipping")
				run.report.Skipped = append(run.report.Skipped, "publish "+publish.ID())
			default:
				err = r.publishUpdate(ctx, run, publish)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Reconciler) publishCreate(ctx context.Context, run *convergence, publish types.Publish) error {
	if run.state.Publishes.Has(publish.ID()) {
		log.Ctx(ctx).Debug().Str("publish", publish.ID()).Msg("publish exists")
		return nil
	}
	b := newBatch()
	command, err := r.planPublishCreate(run, b, publish)
	if err != nil {
		return err
	}
	b.add(command)
	return r.execute(ctx, run, b.commands)
}

func (r Reconciler) planPublishCreate(run *convergence, b *batch, publish types.Publish) (*Command, error) {
	id := publish.ID()
	if PublishVariantOf(run.cfg, publish) == types.PublishVariantRepo {
		r.ensureRepo(run, b, publish.Repo)
		architectures := publish.Architectures
		if len(architectures) == 0 {
			architectures = run.cfg.Repos[publish.Repo].Architectures
		}
		args := []string{"publish", "repo"}
		args = append(args, publishFlags(publish, publish.Components, architectures)...)
		args = append(args, publish.Repo, publish.Prefix())
		return NewCommand(args...).
			Require(types.EntityRepo, publish.Repo).
			Provide(types.EntityPublish, id).
			OnSuccess(func(state *types.SystemState) { state.SetPublish(id, nil) }), nil
	}

	components, names, err := r.desiredSources(run, b, publish)
	if err != nil {
		return nil, err
	}
	args := []string{"publish", "snapshot"}
	args = append(args, publishFlags(publish, components, publish.Architectures)...)
	args = append(args, names...)
	args = append(args, publish.Prefix())
	command := NewCommand(args...).Provide(types.EntityPublish, id)
	for _, name := range names {
		command.Require(types.EntitySnapshot, name)
	}
	sources := pairSources(components, names)
	return command.OnSuccess(func(state *types.SystemState) { state.SetPublish(id, sources) }), nil
}

// publishUpdate converges one publish: absent publishes are created, repo
// publishes refreshed and snapshot publishes switched when their snapshot
// set differs from the one aptly serves.
func (r Reconciler) publishUpdate(ctx context.Context, run *convergence, publish types.Publish) error {
	id := publish.ID()
	variant := PublishVariantOf(run.cfg, publish)
	if variant == types.PublishVariantRotating {
		b := newBatch()
		for _, ref := range publish.Snapshots {
			snapshot, ok := run.cfg.Snapshots[ref.Name]
			if !ok || !snapshot.IsRotating() {
				continue
			}
			if err := r.planRotation(run, b, snapshot); err != nil {
				return err
			}
		}
		if err := r.execute(ctx, run, b.commands); err != nil {
			return err
		}
	}

	if !run.state.Publishes.Has(id) {
		if err := r.publishCreate(ctx, run, publish); err != nil {
			return err
		}
	} else if variant == types.PublishVariantRepo {
		args := []string{"publish", "update"}
		args = append(args, signingFlags(publish)...)
		args = append(args, publish.Distribution, publish.Prefix())
		command := NewCommand(args...).Require(types.EntityPublish, id)
		if err := r.execute(ctx, run, []*Command{command}); err != nil {
			return err
		}
	} else if err := r.switchPublish(ctx, run, publish, variant); err != nil {
		return err
	}

	if variant == types.PublishVariantRotating {
		for _, ref := range publish.Snapshots {
			snapshot, ok := run.cfg.Snapshots[ref.Name]
			if !ok || !snapshot.IsRotating() {
				continue
			}
			if err := r.applyRetention(ctx, run, snapshot); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Reconciler) switchPublish(ctx context.Context, run *convergence, publish types.Publish, variant types.PublishVariant) error {
	id := publish.ID()
	b := newBatch()
	components, names, err := r.desiredSources(run, b, publish)
	if err != nil {
		return err
	}
	if types.NewSet(names...).Equal(run.state.PublishMap[id]) {
		log.Ctx(ctx).Debug().Str("publish", id).Msg("publish up to date")
		return r.execute(ctx, run, b.commands)
	}

	if variant != types.PublishVariantRepublish {
		current := run.state.PublishSources[id]
		for i, ref := range publish.Snapshots {
			if ref.ArchiveOnUpdate == "" || i >= len(components) {
				continue
			}
			old := current[components[i]]
			archive := ExpandName(ref.ArchiveOnUpdate, run.now)
			if old == "" || old == names[i] || run.state.Snapshots.Has(archive) || b.snapshots.Has(archive) {
				continue
			}
			b.snapshots.Add(archive)
			b.add(NewCommand("snapshot", "merge", archive, old).
				Require(types.EntitySnapshot, old).
				Provide(types.EntitySnapshot, archive).
				OnSuccess(func(state *types.SystemState) { state.Snapshots.Add(archive) }))
		}
	}

	args := []string{"publish", "switch"}
	if len(components) > 0 {
		args = append(args, "-component="+strings.Join(components, ","))
	}
	args = append(args, signingFlags(publish)...)
	args = append(args, publish.Distribution, publish.Prefix())
	args = append(args, names...)
	command := NewCommand(args...).Require(types.EntityPublish, id)
	for _, name := range names {
		command.Require(types.EntitySnapshot, name)
	}
	sources := pairSources(components, names)
	b.add(command.OnSuccess(func(state *types.SystemState) { state.SetPublish(id, sources) }))
	return r.execute(ctx, run, b.commands)
}

// desiredSources returns the components and snapshot names a publish should
// serve. Declared snapshots are planned into b when missing; a republish
// copies whatever its upstream serves right now.
func (r Reconciler) desiredSources(run *convergence, b *batch, publish types.Publish) ([]string, []string, error) {
	if publish.Publish != "" {
		return upstreamSources(run, publish)
	}
	names := make([]string, 0, len(publish.Snapshots))
	for _, ref := range publish.Snapshots {
		if err := r.ensureSnapshot(run, b, ref); err != nil {
			return nil, nil, err
		}
		name, err := SnapshotName(run.cfg, ref, run.now)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, name)
	}
	return append([]string(nil), publish.Components...), names, nil
}

// upstreamMissing reports a republish whose upstream aptly does not serve.
func upstreamMissing(run *convergence, publish types.Publish) bool {
	if publish.Publish == "" {
		return false
	}
	prefix, distribution, ok := publish.Upstream()
	return ok && !run.state.Publishes.Has(types.PublishID(prefix, distribution))
}

func upstreamSources(run *convergence, publish types.Publish) ([]string, []string, error) {
	prefix, distribution, ok := publish.Upstream()
	if !ok {
		return nil, nil, shared.InvalidReference("publish", publish.Publish)
	}
	upstream := types.PublishID(prefix, distribution)
	if !run.state.Publishes.Has(upstream) {
		return nil, nil, shared.UnresolvedDependency(string(types.EntityPublish), upstream)
	}
	sources := run.state.PublishSources[upstream]
	if len(sources) == 0 {
		return nil, nil, shared.InvalidConfig("publish %s: upstream %s serves no snapshots", publish.ID(), upstream)
	}
	components := make([]string, 0, len(sources))
	for component := range sources {
		components = append(components, component)
	}
	sort.Strings(components)
	names := make([]string, 0, len(components))
	for _, component := range components {
		names = append(names, sources[component])
	}
	return components, names, nil
}

func pairSources(components []string, names []string) map[string]string {
	sources := make(map[string]string, len(names))
	for i, name := range names {
		component := types.DefaultComponent
		if i < len(components) {
			component = components[i]
		}
		sources[component] = name
	}
	return sources
}

func publishFlags(publish types.Publish, components []string, architectures types.StringList) []string {
	flags := []string{"-distribution=" + publish.Distribution}
	if len(components) > 0 {
		flags = append(flags, "-component="+strings.Join(components, ","))
	}
	if len(architectures) > 0 {
		flags = append(flags, "-architectures="+architectures.Join())
	}
	if publish.Origin != "" {
		flags = append(flags, "-origin="+publish.Origin)
	}
	if publish.Label != "" {
		flags = append(flags, "-label="+publish.Label)
	}
	return append(flags, signingFlags(publish)...)
}

func signingFlags(publish types.Publish) []string {
	var flags []string
	if publish.GPGKey != "" {
		flags = append(flags, "-gpg-key="+publish.GPGKey)
	}
	if publish.SkipSigning {
		flags = append(flags, "-skip-signing")
	}
	if publish.SkipContents {
		flags = append(flags, "-skip-contents")
	}
	return flags
}
