package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptlyctl/internal/types"
)

const retainedYAML = mirrorsYAML + `
snapshot:
  fakerepo01-current:
    mirror: fakerepo01
    rotate_via: fakerepo01-current-rotated-%T
    retention: {count: 1}
`

func seedRotations(h *harness) {
	h.aptly.AddSnapshot("fakerepo01-current-rotated-20121008T1010Z", day1.AddDate(0, 0, -2))
	h.aptly.AddSnapshot("fakerepo01-current-rotated-20121009T1010Z", day1.AddDate(0, 0, -1))
	h.aptly.AddSnapshot("unrelated-20121001T1010Z", day1.AddDate(0, 0, -9))
}

func TestPruneDryRunIssuesNoCommands(t *testing.T) {
	h := newHarness(t, retainedYAML)
	seedRotations(h)

	report, err := h.reconciler.Prune(h.ctx, h.cfg, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"fakerepo01-current-rotated-20121008T1010Z"}, report.Pruned)
	assert.Empty(t, report.Commands)
	assert.Empty(t, h.aptly.Mutations())
}

func TestPruneDropsOutsideRetention(t *testing.T) {
	h := newHarness(t, retainedYAML)
	seedRotations(h)

	report, err := h.reconciler.Prune(h.ctx, h.cfg, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"fakerepo01-current-rotated-20121008T1010Z"}, report.Pruned)
	assert.Equal(t, []string{"snapshot drop fakerepo01-current-rotated-20121008T1010Z"}, h.aptly.Mutations())
	assert.Equal(t, types.NewSet(
		"fakerepo01-current-rotated-20121009T1010Z",
		"unrelated-20121001T1010Z",
	), h.state().Snapshots)
}
