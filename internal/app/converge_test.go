package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptlyctl/internal/adapters"
	"aptlyctl/internal/types"
	"aptlyctl/tests/testutil"
)

const serviceYAML = `
mirror:
  fakerepo01:
    archive-url: http://localhost:3123/fakerepo01
repo:
  local: {}
snapshot:
  fakerepo01-%T:
    mirror: fakerepo01
    timestamp: {time: "00:00"}
publish:
  fakerepo01:
    distribution: main
    snapshots:
      - name: fakerepo01-%T
        timestamp: current
  local:
    distribution: stable
    repo: local
`

type noKeys struct {
	mu    sync.Mutex
	calls int
}

func (k *noKeys) EnsureKeys(context.Context, []string, []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls++
	return nil
}

func newTestService(t *testing.T) (Service, *testutil.FakeAptly, string) {
	t.Helper()
	fake := testutil.NewFakeAptly()
	clock := testutil.NewClock(time.Date(2012, 10, 10, 10, 10, 10, 0, time.UTC))
	fake.Now = clock.Now
	path := testutil.WriteFile(t, t.TempDir(), "aptly.yaml", serviceYAML)
	service := Service{
		Settings:    types.DefaultSettings(),
		Config:      adapters.NewConfigFileAdapter(),
		Aptly:       fake,
		StateReader: adapters.NewAptlyStateReader(fake),
		Keys:        &noKeys{},
		Clock:       clock.Now,
	}
	return service, fake, path
}

func TestConvergePublishCreate(t *testing.T) {
	service, _, path := newTestService(t)
	ctx := t.Context()

	_, err := service.Converge(ctx, ConvergeRequest{ConfigPath: path, Kind: types.EntityMirror, Action: types.ActionCreate})
	require.NoError(t, err)
	result, err := service.Converge(ctx, ConvergeRequest{
		ConfigPath: path,
		Kind:       types.EntityPublish,
		Action:     types.ActionCreate,
		Name:       "fakerepo01",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Report.Commands)

	state, err := service.ReadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NewSet("fakerepo01 main"), state.State.Publishes)
	assert.Equal(t, types.NewSet("fakerepo01-20121010T0000Z"), state.State.PublishMap["fakerepo01 main"])
}

func TestConvergeRejectsOldAptly(t *testing.T) {
	service, fake, path := newTestService(t)
	fake.Version = "1.3.0"

	_, err := service.Converge(t.Context(), ConvergeRequest{ConfigPath: path, Kind: types.EntityRepo, Action: types.ActionCreate})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Empty(t, fake.Mutations())
}

func TestConvergeUnknownNameIsInvalidReference(t *testing.T) {
	service, fake, path := newTestService(t)

	_, err := service.Converge(t.Context(), ConvergeRequest{
		ConfigPath: path,
		Kind:       types.EntityRepo,
		Action:     types.ActionCreate,
		Name:       "missing",
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
	assert.Empty(t, fake.Mutations())
}

func TestSyncConvergesEverything(t *testing.T) {
	service, fake, path := newTestService(t)
	ctx := t.Context()

	result, err := service.Sync(ctx, SyncRequest{ConfigPath: path})
	require.NoError(t, err)
	assert.Contains(t, result.Report.Commands, "mirror update fakerepo01")

	state, err := service.ReadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NewSet("fakerepo01"), state.State.Mirrors)
	assert.Equal(t, types.NewSet("local"), state.State.Repos)
	assert.Equal(t, types.NewSet("fakerepo01 main", "local stable"), state.State.Publishes)

	fake.ResetCalls()
	result, err = service.Sync(ctx, SyncRequest{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"mirror update fakerepo01", "publish update stable local"}, fake.Mutations())
}
