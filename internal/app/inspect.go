package app

import (
	"context"
)

// Inspect compares every declared publish with aptly without changing
// anything.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	cfg, err := s.LoadConfig(ctx, req.ConfigPath)
	if err != nil {
		return InspectResult{}, err
	}
	statuses, err := s.reconciler().Status(ctx, cfg)
	if err != nil {
		return InspectResult{}, err
	}
	result := InspectResult{Publishes: statuses}
	for _, status := range statuses {
		if !status.InSync {
			result.OutOfSync = append(result.OutOfSync, status.ID)
		}
	}
	return result, nil
}
