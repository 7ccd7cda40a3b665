package ports

import "context"

// KeyImporterPort makes mirror signing keys available to aptly.
type KeyImporterPort interface {
	EnsureKeys(ctx context.Context, keyIDs []string, keyURLs []string) error
}
