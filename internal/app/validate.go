package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"aptlyctl/internal/core"
	"aptlyctl/internal/types"
)

func (s Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	cfg, err := s.LoadConfig(ctx, req.ConfigPath)
	if err != nil {
		return ValidateResult{}, err
	}
	publishes := 0
	for _, list := range cfg.Publishes {
		publishes += len(list)
	}
	return ValidateResult{
		Mirrors:   len(cfg.Mirrors),
		Repos:     len(cfg.Repos),
		Snapshots: len(cfg.Snapshots),
		Publishes: publishes,
	}, nil
}

// LoadConfig reads and validates the desired state. Nothing is sent to
// aptly.
func (s Service) LoadConfig(ctx context.Context, path string) (types.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return types.Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("config path is required")
	}
	if s.Config == nil {
		return types.Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("config loader is not configured")
	}
	cfg, err := s.Config.Load(path)
	if err != nil {
		return types.Config{}, err
	}
	if err := core.ValidateConfig(ctx, cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}
