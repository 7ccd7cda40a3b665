package adapters

import (
	"context"
	"strings"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/types"
)

// AptlyCLI prefixes every call with the configured aptly binary and, when
// set, the -config flag.
type AptlyCLI struct {
	Runner     ports.CommandRunnerPort
	Binary     string
	ConfigFile string
}

func NewAptlyCLI(runner ports.CommandRunnerPort, settings types.Settings) AptlyCLI {
	binary := strings.TrimSpace(settings.AptlyBinary)
	if binary == "" {
		binary = types.DefaultAptlyBinary
	}
	return AptlyCLI{
		Runner:     runner,
		Binary:     binary,
		ConfigFile: strings.TrimSpace(settings.AptlyConfig),
	}
}

func (a AptlyCLI) Aptly(ctx context.Context, args ...string) (types.CommandResult, error) {
	full := make([]string, 0, len(args)+1)
	if a.ConfigFile != "" {
		full = append(full, "-config="+a.ConfigFile)
	}
	full = append(full, args...)
	return a.Runner.Run(ctx, a.Binary, full...)
}

var _ ports.AptlyPort = AptlyCLI{}
