package ports

import (
	"context"

	"aptlyctl/internal/types"
)

// CommandRunnerPort executes one external program and captures its output.
// A non-zero exit status is returned as an error together with the result.
type CommandRunnerPort interface {
	Run(ctx context.Context, program string, args ...string) (types.CommandResult, error)
}

// AptlyPort runs an aptly subcommand, e.g. Aptly(ctx, "snapshot", "list", "-raw").
type AptlyPort interface {
	Aptly(ctx context.Context, args ...string) (types.CommandResult, error)
}
