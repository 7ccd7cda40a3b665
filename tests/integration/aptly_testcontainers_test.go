//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"

	"aptlyctl/internal/adapters"
	"aptlyctl/internal/app"
	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
	"aptlyctl/tests/testutil"
)

const localPublishYAML = `
repo:
  local:
    distribution: stable
    architectures: [amd64]
snapshot:
  local-%T:
    repo: local
    timestamp: {time: "00:00"}
publish:
  local:
    distribution: stable
    repo: local
    skip-signing: true
  frozen:
    distribution: stable
    architectures: [amd64]
    skip-signing: true
    snapshots:
      - name: local-%T
        timestamp: current
`

const aptlyReadyMarker = "aptly-ready"

func TestAptlySyncWithTestcontainers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers e2e in short mode")
	}

	ctx := t.Context()
	runner, cleanup := startAptlyContainer(ctx, t)
	t.Cleanup(cleanup)

	aptly := adapters.NewAptlyCLI(runner, types.DefaultSettings())
	service := app.Service{
		Settings:    types.DefaultSettings(),
		Config:      adapters.NewConfigFileAdapter(),
		Aptly:       aptly,
		StateReader: adapters.NewAptlyStateReader(aptly),
		Keys:        noKeys{},
		Clock:       time.Now,
	}
	path := testutil.WriteFile(t, t.TempDir(), "aptly.yaml", localPublishYAML)

	result, err := service.Sync(ctx, app.SyncRequest{ConfigPath: path})
	require.NoError(t, err)
	require.NotEmpty(t, result.Report.Commands)
	assert.True(t, strings.HasPrefix(result.Report.Commands[0], "repo create"), result.Report.Commands[0])

	state, err := service.ReadState(ctx)
	require.NoError(t, err)
	assert.True(t, state.State.Repos.Has("local"))
	assert.True(t, state.State.Publishes.Has("local stable"))
	assert.True(t, state.State.Publishes.Has("frozen stable"))
	require.Len(t, state.State.Snapshots, 1)
	for name := range state.State.Snapshots {
		assert.True(t, strings.HasPrefix(name, "local-"), name)
		assert.True(t, state.State.PublishMap["frozen stable"].Has(name))
	}

	inspect, err := service.Inspect(ctx, app.InspectRequest{ConfigPath: path})
	require.NoError(t, err)
	assert.Empty(t, inspect.OutOfSync)

	again, err := service.Sync(ctx, app.SyncRequest{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"publish update stable local"}, again.Report.Commands)
}

type noKeys struct{}

func (noKeys) EnsureKeys(context.Context, []string, []string) error {
	return nil
}

// containerRunner runs programs inside the aptly container. Stderr is
// redirected to a file so stdout stays parseable.
type containerRunner struct {
	container testcontainers.Container
}

func (r containerRunner) Run(ctx context.Context, program string, args ...string) (types.CommandResult, error) {
	result := types.CommandResult{Args: append([]string{program}, args...)}
	script := `"$0" "$@" 2>/tmp/stderr`
	cmd := append([]string{"sh", "-c", script, program}, args...)
	code, reader, err := r.container.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return result, err
	}
	stdout, err := io.ReadAll(reader)
	if err != nil {
		return result, err
	}
	result.Stdout = string(stdout)
	result.ExitCode = code
	if code == 0 {
		return result, nil
	}
	_, errReader, err := r.container.Exec(ctx, []string{"cat", "/tmp/stderr"}, tcexec.Multiplexed())
	if err == nil {
		stderr, _ := io.ReadAll(errReader)
		result.Stderr = string(stderr)
	}
	return result, shared.CommandFailed(filepath.Base(program), result.Stderr, fmt.Errorf("exit status %d", code))
}

func startAptlyContainer(ctx context.Context, t *testing.T) (containerRunner, func()) {
	t.Helper()
	install := "apt-get update -qq && apt-get install -y -qq aptly >/dev/null && echo " + aptlyReadyMarker + " && sleep infinity"
	req := testcontainers.ContainerRequest{
		Image:      "debian:bookworm-slim",
		Cmd:        []string{"sh", "-c", install},
		WaitingFor: wait.ForLog(aptlyReadyMarker).WithStartupTimeout(5 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = container.Terminate(context.Background())
	}
	return containerRunner{container: container}, cleanup
}
