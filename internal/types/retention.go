package types

import "time"

// SnapshotInfo describes one rotated snapshot considered for pruning.
// Channel carries the publish id when the snapshot is still published.
type SnapshotInfo struct {
	Source     string
	SnapshotID string
	Channel    string
	CreatedAt  time.Time
}

type SnapshotRetentionPolicy struct {
	KeepLast        int
	MaxAge          time.Duration
	ProtectChannels []string
}

type SnapshotPrunePlan struct {
	Keep   []SnapshotInfo
	Delete []SnapshotInfo
}
