package adapters

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// ExecRunner runs programs on the local host with stdout and stderr captured
// separately. It never retries; cancellation follows the context.
type ExecRunner struct {
	Env []string
}

func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

func (r ExecRunner) Run(ctx context.Context, program string, args ...string) (types.CommandResult, error) {
	result := types.CommandResult{Args: append([]string{program}, args...)}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	cmd := exec.CommandContext(ctx, program, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.ExitCode = exitCode(err)
	logCommandResult(ctx, result)
	if err != nil {
		return result, shared.CommandFailed(filepath.Base(program), result.Stderr, err)
	}
	return result, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func logCommandResult(ctx context.Context, result types.CommandResult) {
	log.Ctx(ctx).Debug().
		Str("cmd", strings.Join(result.Args, " ")).
		Int("exit", result.ExitCode).
		Str("stdout", strings.TrimSpace(result.Stdout)).
		Str("stderr", strings.TrimSpace(result.Stderr)).
		Msg("command call")
}

var _ ports.CommandRunnerPort = ExecRunner{}
