package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aptlyctl/tests/testutil"
)

const pruneYAML = `
mirror:
  fakerepo01:
    archive-url: http://localhost:3123/fakerepo01
snapshot:
  fakerepo01-current:
    mirror: fakerepo01
    rotate_via: fakerepo01-current-rotated-%T
    retention: {max-age: 2d}
`

func TestPruneSnapshots(t *testing.T) {
	service, fake, _ := newTestService(t)
	path := testutil.WriteFile(t, t.TempDir(), "prune.yaml", pruneYAML)
	now := service.Clock()
	fake.AddSnapshot("fakerepo01-current-rotated-"+now.AddDate(0, 0, -5).Format("20060102T1504Z"), now.AddDate(0, 0, -5))
	fake.AddSnapshot("fakerepo01-current-rotated-"+now.AddDate(0, 0, -1).Format("20060102T1504Z"), now.AddDate(0, 0, -1))
	ctx := t.Context()

	dry, err := service.Prune(ctx, PruneRequest{ConfigPath: path, DryRun: true})
	require.NoError(t, err)
	require.True(t, dry.DryRun)
	require.Equal(t, []string{"fakerepo01-current-rotated-20121005T1010Z"}, dry.Deleted)
	require.Empty(t, fake.Mutations())

	result, err := service.Prune(ctx, PruneRequest{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, 1, result.DeleteCount)
	require.Len(t, fake.Snapshots(), 1)
	require.True(t, fake.Snapshots().Has("fakerepo01-current-rotated-"+now.Add(-24*time.Hour).Format("20060102T1504Z")))
}
