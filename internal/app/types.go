package app

import (
	"time"

	"aptlyctl/internal/types"
)

type ValidateRequest struct {
	ConfigPath string
}

type ValidateResult struct {
	Mirrors   int
	Repos     int
	Snapshots int
	Publishes int
}

type ConvergeRequest struct {
	ConfigPath string
	Kind       types.EntityKind
	Action     types.Action
	// Name selects one declared entity; empty means all of them.
	Name string
}

type ConvergeResult struct {
	Report types.RunReport
}

type SyncRequest struct {
	ConfigPath string
}

type SyncResult struct {
	Report types.RunReport
}

type StateResult struct {
	State types.SystemState
}

type WatchRequest struct {
	ConfigPath string
	Interval   time.Duration
	// AfterRun, when set, receives the outcome of every scheduled sync.
	AfterRun func(SyncResult, error)
}

type PruneRequest struct {
	ConfigPath string
	DryRun     bool
}

type PruneResult struct {
	DeleteCount int
	Deleted     []string
	Skipped     []string
	DryRun      bool
}

type InspectRequest struct {
	ConfigPath string
}

type InspectResult struct {
	Publishes []types.PublishStatus
	OutOfSync []string
}
