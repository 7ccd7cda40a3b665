package core

import (
	"context"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// ValidateConfig checks a defaulted config for everything the reconciler
// relies on: one source per snapshot, one binding per publish, declared
// references and parseable schedules.
func ValidateConfig(ctx context.Context, cfg types.Config) error {
	for _, name := range types.SortedKeys(cfg.Mirrors) {
		mirror := cfg.Mirrors[name]
		assert.NotEmpty(ctx, mirror.Name, "mirror name must be set")
		if strings.TrimSpace(mirror.Archive) == "" {
			return shared.InvalidConfig("mirror %s: archive-url must be set", name)
		}
		if mirror.MaxTries < 0 {
			return shared.InvalidConfig("mirror %s: max-tries must not be negative", name)
		}
	}
	for _, name := range types.SortedKeys(cfg.Snapshots) {
		if err := validateSnapshot(ctx, cfg, cfg.Snapshots[name]); err != nil {
			return err
		}
	}
	if err := validateSnapshotGraph(cfg); err != nil {
		return err
	}
	for _, name := range types.SortedKeys(cfg.Publishes) {
		seen := types.Set{}
		for _, publish := range cfg.Publishes[name] {
			if err := validatePublish(ctx, cfg, publish); err != nil {
				return err
			}
			if seen.Has(publish.Distribution) {
				return shared.InvalidConfig("publish %s: distribution %s declared twice", name, publish.Distribution)
			}
			seen.Add(publish.Distribution)
		}
	}
	return nil
}

func validateSnapshot(ctx context.Context, cfg types.Config, snapshot types.Snapshot) error {
	assert.NotEmpty(ctx, snapshot.Name, "snapshot name must be set")
	name := snapshot.Name
	sources := 0
	if snapshot.Mirror != "" {
		sources++
		if _, ok := cfg.Mirrors[snapshot.Mirror]; !ok {
			return shared.InvalidReference("mirror", snapshot.Mirror)
		}
	}
	if snapshot.Repo != "" {
		sources++
		if _, ok := cfg.Repos[snapshot.Repo]; !ok {
			return shared.InvalidReference("repo", snapshot.Repo)
		}
	}
	if len(snapshot.Merge) > 0 {
		sources++
	}
	if snapshot.Filter != nil {
		sources++
		if strings.TrimSpace(snapshot.Filter.Query) == "" {
			return shared.InvalidConfig("snapshot %s: filter query must be set", name)
		}
	}
	if sources != 1 {
		return shared.InvalidConfig("snapshot %s: exactly one of mirror, repo, merge or filter must be set", name)
	}
	for _, ref := range snapshot.Sources() {
		if err := validateSnapshotRef(cfg, ref); err != nil {
			return err
		}
	}
	if snapshot.Timestamp != nil {
		if _, err := RoundTimestamp(snapshot.Timestamp, time.Unix(0, 0)); err != nil {
			return err
		}
	}
	if snapshot.IsRotating() {
		if !HasTimestamp(snapshot.RotateVia) {
			return shared.InvalidConfig("snapshot %s: rotate_via must contain %s", name, TimestampPlaceholder)
		}
		if HasTimestamp(name) {
			return shared.InvalidConfig("snapshot %s: a rotating snapshot keeps a stable name without %s", name, TimestampPlaceholder)
		}
	}
	if snapshot.Retention != nil {
		if snapshot.Retention.Count < 0 {
			return shared.InvalidConfig("snapshot %s: retention count must not be negative", name)
		}
		if _, err := ParseRetentionAge(snapshot.Retention.MaxAge); err != nil {
			return err
		}
	}
	return nil
}

func validateSnapshotRef(cfg types.Config, ref types.SnapshotRef) error {
	if strings.TrimSpace(ref.Name) == "" {
		return shared.InvalidConfig("snapshot reference without a name")
	}
	if _, ok := cfg.Snapshots[ref.Name]; !ok && HasTimestamp(ref.Name) {
		return shared.InvalidReference("snapshot", ref.Name)
	}
	if _, err := ParseBackReference(ref.Timestamp); err != nil {
		return err
	}
	return nil
}

func validatePublish(ctx context.Context, cfg types.Config, publish types.Publish) error {
	assert.NotEmpty(ctx, publish.Name, "publish name must be set")
	name := publish.Name
	if strings.TrimSpace(publish.Distribution) == "" {
		return shared.InvalidConfig("publish %s: distribution must be set", name)
	}
	bindings := 0
	if len(publish.Snapshots) > 0 {
		bindings++
		for _, ref := range publish.Snapshots {
			if err := validateSnapshotRef(cfg, ref); err != nil {
				return err
			}
		}
		if len(publish.Components) != len(publish.Snapshots) {
			return shared.InvalidConfig("publish %s: %d snapshots need %d components, got %d",
				name, len(publish.Snapshots), len(publish.Snapshots), len(publish.Components))
		}
	}
	if publish.Repo != "" {
		bindings++
		if _, ok := cfg.Repos[publish.Repo]; !ok {
			return shared.InvalidReference("repo", publish.Repo)
		}
	}
	if publish.Publish != "" {
		bindings++
		prefix, distribution, ok := publish.Upstream()
		if !ok {
			return shared.InvalidConfig("publish %s: upstream must look like <prefix>/<distribution>", name)
		}
		upstream, found := cfg.FindPublish(prefix, distribution)
		if !found {
			return shared.InvalidReference("publish", publish.Publish)
		}
		if upstream.ID() == publish.ID() {
			return shared.InvalidConfig("publish %s: republishes itself", name)
		}
	}
	if bindings != 1 {
		return shared.InvalidConfig("publish %s: exactly one of snapshots, repo or publish must be set", name)
	}
	if publish.Retention != nil {
		if _, err := ParseRetentionAge(publish.Retention.MaxAge); err != nil {
			return err
		}
	}
	return nil
}

// validateSnapshotGraph rejects merge or filter chains that loop back.
func validateSnapshotGraph(cfg types.Config) error {
	const (
		unvisited = iota
		visiting
		visited
	)
	marks := map[string]int{}
	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case visiting:
			return shared.InvalidConfig("snapshot %s: merge or filter sources form a cycle", name)
		case visited:
			return nil
		}
		marks[name] = visiting
		for _, ref := range cfg.Snapshots[name].Sources() {
			if _, ok := cfg.Snapshots[ref.Name]; !ok {
				continue
			}
			if err := visit(ref.Name); err != nil {
				return err
			}
		}
		marks[name] = visited
		return nil
	}
	for _, name := range types.SortedKeys(cfg.Snapshots) {
		if marks[name] == unvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
