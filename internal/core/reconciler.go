package core

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// Reconciler converges aptly towards a config. Every run reads the state
// once, then plans and executes batches of commands strictly in sequence,
// applying each command's effect to its in-memory copy of the state.
type Reconciler struct {
	Aptly ports.AptlyPort
	State ports.StateReaderPort
	Keys  ports.KeyImporterPort
	Clock func() time.Time
}

func NewReconciler(aptly ports.AptlyPort, state ports.StateReaderPort, keys ports.KeyImporterPort, clock func() time.Time) Reconciler {
	return Reconciler{
		Aptly: aptly,
		State: state,
		Keys:  keys,
		Clock: clock,
	}
}

// convergence is the mutable context of one run.
type convergence struct {
	cfg      types.Config
	state    types.SystemState
	now      time.Time
	rotated  types.Set
	dropped  types.Set
	report   types.RunReport
}

// batch collects the commands of one planning step.
type batch struct {
	commands  []*Command
	snapshots types.Set
	repos     types.Set
}

func newBatch() *batch {
	return &batch{snapshots: types.Set{}, repos: types.Set{}}
}

func (b *batch) add(command *Command) {
	b.commands = append(b.commands, command)
}

// Run applies one action to every declared entity of a kind, or to the
// named one. Unknown names fail before aptly is touched.
func (r Reconciler) Run(ctx context.Context, cfg types.Config, kind types.EntityKind, action types.Action, name string) (types.RunReport, error) {
	if err := r.ready(); err != nil {
		return types.RunReport{}, err
	}
	if action != types.ActionCreate && action != types.ActionUpdate {
		return types.RunReport{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported action: %s", action))
	}
	names, err := selectNames(cfg, kind, name)
	if err != nil {
		return types.RunReport{}, err
	}
	run, err := r.begin(ctx, cfg)
	if err != nil {
		return types.RunReport{}, err
	}
	log.Ctx(ctx).Info().
		Str("kind", string(kind)).
		Str("action", string(action)).
		Strs("names", names).
		Msg("converging")

	switch kind {
	case types.EntityMirror:
		err = r.mirrors(ctx, run, names, action)
	case types.EntityRepo:
		err = r.repos(ctx, run, names)
	case types.EntitySnapshot:
		if action == types.ActionCreate {
			err = r.snapshotCreate(ctx, run, names)
		} else {
			err = r.snapshotUpdate(ctx, run, names)
		}
	case types.EntityPublish:
		err = r.publishes(ctx, run, names, action, name == "")
	}
	return run.report, err
}

// Sync runs a full convergence in dependency order: mirrors are refreshed,
// repos created, snapshots rotated and created, publishes updated.
func (r Reconciler) Sync(ctx context.Context, cfg types.Config) (types.RunReport, error) {
	if err := r.ready(); err != nil {
		return types.RunReport{}, err
	}
	run, err := r.begin(ctx, cfg)
	if err != nil {
		return types.RunReport{}, err
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{name: "mirror", fn: func() error {
			return r.mirrors(ctx, run, types.SortedKeys(cfg.Mirrors), types.ActionUpdate)
		}},
		{name: "repo", fn: func() error {
			return r.repos(ctx, run, types.SortedKeys(cfg.Repos))
		}},
		{name: "snapshot", fn: func() error {
			return r.snapshotUpdate(ctx, run, types.SortedKeys(cfg.Snapshots))
		}},
		{name: "publish", fn: func() error {
			return r.publishes(ctx, run, types.SortedKeys(cfg.Publishes), types.ActionUpdate, true)
		}},
	}
	for _, step := range steps {
		log.Ctx(ctx).Debug().Str("step", step.name).Msg("sync step")
		if err := step.fn(); err != nil {
			return run.report, err
		}
	}
	return run.report, nil
}

func (r Reconciler) ready() error {
	if r.Aptly == nil || r.State == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("reconciler requires aptly and state ports")
	}
	return nil
}

func (r Reconciler) begin(ctx context.Context, cfg types.Config) (*convergence, error) {
	state, err := r.State.Read(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if r.Clock != nil {
		now = r.Clock()
	}
	return &convergence{
		cfg:      cfg,
		state:    state,
		now:      now.UTC(),
		rotated:  types.Set{},
		dropped:  types.Set{},
	}, nil
}

func selectNames(cfg types.Config, kind types.EntityKind, name string) ([]string, error) {
	var declared []string
	switch kind {
	case types.EntityMirror:
		declared = types.SortedKeys(cfg.Mirrors)
	case types.EntityRepo:
		declared = types.SortedKeys(cfg.Repos)
	case types.EntitySnapshot:
		declared = types.SortedKeys(cfg.Snapshots)
	case types.EntityPublish:
		declared = types.SortedKeys(cfg.Publishes)
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported entity kind: %s", kind))
	}
	if name == "" {
		return declared, nil
	}
	if !types.NewSet(declared...).Has(name) {
		return nil, shared.InvalidReference(string(kind), name)
	}
	return []string{name}, nil
}

// execute orders a batch and runs it. Failures abort the run unless the
// command is best effort.
func (r Reconciler) execute(ctx context.Context, run *convergence, commands []*Command) error {
	if len(commands) == 0 {
		return nil
	}
	ordered, err := OrderCommands(commands, run.state)
	if err != nil {
		return err
	}
	for _, command := range ordered {
		if _, err := r.Aptly.Aptly(ctx, command.Args...); err != nil {
			if command.bestEffort {
				log.Ctx(ctx).Warn().Err(err).Str("cmd", command.String()).Msg("best-effort command failed")
				run.report.Skipped = append(run.report.Skipped, command.String())
				continue
			}
			log.Ctx(ctx).Error().Err(err).Str("cmd", command.String()).Msg("command failed")
			return err
		}
		if command.effect != nil {
			command.effect(&run.state)
		}
		run.report.Commands = append(run.report.Commands, command.String())
	}
	return nil
}
