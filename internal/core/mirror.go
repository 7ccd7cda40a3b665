package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/types"
)

// mirrors creates absent mirrors and, on update, refreshes every selected
// mirror unconditionally.
func (r Reconciler) mirrors(ctx context.Context, run *convergence, names []string, action types.Action) error {
	b := newBatch()
	for _, name := range names {
		mirror := run.cfg.Mirrors[name]
		if run.state.Mirrors.Has(name) {
			if action == types.ActionCreate {
				if err := r.checkMirrorDrift(ctx, mirror); err != nil {
					return err
				}
			}
			continue
		}
		if err := r.importKeys(ctx, mirror); err != nil {
			return err
		}
		b.add(mirrorCreateCommand(mirror))
	}
	if action == types.ActionUpdate {
		for _, name := range names {
			b.add(mirrorUpdateCommand(run.cfg.Mirrors[name]))
		}
	}
	return r.execute(ctx, run, b.commands)
}

func (r Reconciler) importKeys(ctx context.Context, mirror types.Mirror) error {
	if len(mirror.GPGKeys) == 0 && len(mirror.GPGURLs) == 0 {
		return nil
	}
	if r.Keys == nil {
		log.Ctx(ctx).Warn().Str("mirror", mirror.Name).Msg("no key importer configured, skipping gpg keys")
		return nil
	}
	return r.Keys.EnsureKeys(ctx, mirror.GPGKeys, mirror.GPGURLs)
}

// checkMirrorDrift compares an existing mirror with its declaration. Drift
// is reported, never corrected.
func (r Reconciler) checkMirrorDrift(ctx context.Context, mirror types.Mirror) error {
	record, err := r.State.ShowMirror(ctx, mirror.Name)
	if err != nil {
		return err
	}
	if record.ArchiveURL != "" && strings.TrimSuffix(record.ArchiveURL, "/") != strings.TrimSuffix(mirror.Archive, "/") {
		log.Ctx(ctx).Warn().
			Str("mirror", mirror.Name).
			Str("declared", mirror.Archive).
			Str("actual", record.ArchiveURL).
			Msg("mirror archive differs from config")
	}
	if record.Distribution != "" && record.Distribution != mirror.Distribution {
		log.Ctx(ctx).Warn().
			Str("mirror", mirror.Name).
			Str("declared", mirror.Distribution).
			Str("actual", record.Distribution).
			Msg("mirror distribution differs from config")
	}
	return nil
}

func mirrorCreateCommand(mirror types.Mirror) *Command {
	args := []string{"mirror", "create"}
	if len(mirror.Architectures) > 0 {
		args = append(args, "-architectures="+mirror.Architectures.Join())
	}
	if mirror.Sources {
		args = append(args, "-with-sources")
	}
	if mirror.Udeb {
		args = append(args, "-with-udebs")
	}
	if mirror.Filter != "" {
		args = append(args, "-filter="+mirror.Filter)
		if mirror.FilterWithDeps {
			args = append(args, "-filter-with-deps")
		}
	}
	args = append(args, mirror.Name, mirror.Archive, mirror.Distribution)
	args = append(args, mirror.Components...)
	name := mirror.Name
	return NewCommand(args...).
		Provide(types.EntityMirror, name).
		OnSuccess(func(state *types.SystemState) { state.Mirrors.Add(name) })
}

func mirrorUpdateCommand(mirror types.Mirror) *Command {
	args := []string{"mirror", "update"}
	if mirror.MaxTries > 0 {
		args = append(args, "-max-tries="+strconv.Itoa(mirror.MaxTries))
	}
	args = append(args, mirror.Name)
	return NewCommand(args...).Require(types.EntityMirror, mirror.Name)
}

// repos creates absent repos. Existing repos are left untouched.
func (r Reconciler) repos(ctx context.Context, run *convergence, names []string) error {
	b := newBatch()
	for _, name := range names {
		r.ensureRepo(run, b, name)
	}
	return r.execute(ctx, run, b.commands)
}

func (r Reconciler) ensureRepo(run *convergence, b *batch, name string) {
	repo, declared := run.cfg.Repos[name]
	if !declared || run.state.Repos.Has(name) || b.repos.Has(name) {
		return
	}
	b.repos.Add(name)
	b.add(repoCreateCommand(repo))
}

func repoCreateCommand(repo types.Repo) *Command {
	args := []string{"repo", "create"}
	if repo.Distribution != "" {
		args = append(args, "-distribution="+repo.Distribution)
	}
	if repo.Component != "" {
		args = append(args, "-component="+repo.Component)
	}
	if repo.Comment != "" {
		args = append(args, "-comment="+repo.Comment)
	}
	args = append(args, repo.Name)
	name := repo.Name
	return NewCommand(args...).
		Provide(types.EntityRepo, name).
		OnSuccess(func(state *types.SystemState) { state.Repos.Add(name) })
}
