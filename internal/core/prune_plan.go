package core

import (
	"sort"
	"strings"
	"time"

	"aptlyctl/internal/types"
)

// BuildPrunePlan splits rotated snapshots into the ones to keep and the ones
// to drop. A snapshot survives when it is protected, younger than MaxAge, or
// among the KeepLast newest of its group.
func BuildPrunePlan(snapshots []types.SnapshotInfo, policy types.SnapshotRetentionPolicy, now time.Time) types.SnapshotPrunePlan {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	normalized := normalizeRetentionPolicy(policy)
	protectedChannels := normalizeSet(normalized.ProtectChannels)

	keepIDs := map[string]struct{}{}
	grouped := map[string][]types.SnapshotInfo{}
	for _, snapshot := range snapshots {
		if isProtected(snapshot, protectedChannels) {
			keepIDs[snapshot.SnapshotID] = struct{}{}
		}
		if normalized.MaxAge > 0 && !snapshot.CreatedAt.IsZero() {
			if !snapshot.CreatedAt.Before(now.Add(-normalized.MaxAge)) {
				keepIDs[snapshot.SnapshotID] = struct{}{}
			}
		}
		group := strings.ToLower(snapshot.Source)
		grouped[group] = append(grouped[group], snapshot)
	}

	if normalized.KeepLast > 0 {
		for _, group := range grouped {
			sorted := append([]types.SnapshotInfo(nil), group...)
			sort.Slice(sorted, func(i, j int) bool {
				if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
					return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
				}
				return sorted[i].SnapshotID > sorted[j].SnapshotID
			})
			limit := min(normalized.KeepLast, len(sorted))
			for i := 0; i < limit; i++ {
				keepIDs[sorted[i].SnapshotID] = struct{}{}
			}
		}
	}

	var keep []types.SnapshotInfo
	var del []types.SnapshotInfo
	for _, snapshot := range snapshots {
		if _, ok := keepIDs[snapshot.SnapshotID]; ok {
			keep = append(keep, snapshot)
		} else {
			del = append(del, snapshot)
		}
	}
	return types.SnapshotPrunePlan{Keep: keep, Delete: del}
}

func normalizeRetentionPolicy(policy types.SnapshotRetentionPolicy) types.SnapshotRetentionPolicy {
	normalized := policy
	if normalized.KeepLast < 0 {
		normalized.KeepLast = 0
	}
	if normalized.MaxAge < 0 {
		normalized.MaxAge = 0
	}
	return normalized
}

func normalizeSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}

func isProtected(snapshot types.SnapshotInfo, channels map[string]struct{}) bool {
	if snapshot.Channel == "" {
		return false
	}
	_, ok := channels[strings.ToLower(snapshot.Channel)]
	return ok
}
