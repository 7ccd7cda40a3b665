package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/core"
)

func (s Service) Converge(ctx context.Context, req ConvergeRequest) (ConvergeResult, error) {
	cfg, err := s.LoadConfig(ctx, req.ConfigPath)
	if err != nil {
		return ConvergeResult{}, err
	}
	if err := core.CheckAptlyVersion(ctx, s.StateReader, s.Settings.MinAptlyVersion); err != nil {
		return ConvergeResult{}, err
	}
	report, err := s.reconciler().Run(ctx, cfg, req.Kind, req.Action, req.Name)
	if err != nil {
		return ConvergeResult{Report: report}, err
	}
	log.Ctx(ctx).Info().
		Int("commands", len(report.Commands)).
		Int("pruned", len(report.Pruned)).
		Int("skipped", len(report.Skipped)).
		Msg("converged")
	return ConvergeResult{Report: report}, nil
}

// Sync runs one full convergence of every declared entity.
func (s Service) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	cfg, err := s.LoadConfig(ctx, req.ConfigPath)
	if err != nil {
		return SyncResult{}, err
	}
	if err := core.CheckAptlyVersion(ctx, s.StateReader, s.Settings.MinAptlyVersion); err != nil {
		return SyncResult{}, err
	}
	report, err := s.reconciler().Sync(ctx, cfg)
	if err != nil {
		return SyncResult{Report: report}, err
	}
	log.Ctx(ctx).Info().
		Int("commands", len(report.Commands)).
		Int("pruned", len(report.Pruned)).
		Int("skipped", len(report.Skipped)).
		Msg("sync finished")
	return SyncResult{Report: report}, nil
}

func (s Service) ReadState(ctx context.Context) (StateResult, error) {
	state, err := s.StateReader.Read(ctx)
	if err != nil {
		return StateResult{}, err
	}
	return StateResult{State: state}, nil
}
