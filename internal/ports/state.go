package ports

import (
	"context"

	"aptlyctl/internal/types"
)

// StateReaderPort turns aptly's list/show output into typed state. Every
// call issues fresh commands; nothing is cached between reads.
type StateReaderPort interface {
	Read(ctx context.Context) (types.SystemState, error)
	ShowMirror(ctx context.Context, name string) (types.MirrorRecord, error)
	ShowSnapshot(ctx context.Context, name string) (types.SnapshotRecord, error)
	ShowPublish(ctx context.Context, prefix string, distribution string) (types.PublishRecord, error)
	Version(ctx context.Context) (types.ToolVersion, error)
}
