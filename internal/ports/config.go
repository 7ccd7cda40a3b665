package ports

import "aptlyctl/internal/types"

// ConfigLoaderPort reads the desired state from disk, resolving includes and
// applying defaults. Validation is left to the caller.
type ConfigLoaderPort interface {
	Load(path string) (types.Config, error)
}
