package app

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptlyctl/tests/testutil"
)

func TestValidateCountsEntities(t *testing.T) {
	service, fake, path := newTestService(t)

	result, err := service.Validate(t.Context(), ValidateRequest{ConfigPath: path})
	require.NoError(t, err)
	if diff := cmp.Diff(ValidateResult{Mirrors: 1, Repos: 1, Snapshots: 1, Publishes: 2}, result); diff != "" {
		t.Fatalf("unexpected validate result (-want +got):\n%s", diff)
	}
	assert.Empty(t, fake.Calls())
}

func TestLoadConfigRequiresPath(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.LoadConfig(t.Context(), "  ")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	service, _, _ := newTestService(t)
	path := testutil.WriteFile(t, t.TempDir(), "bad.yaml", "publish:\n  orphan:\n    distribution: main\n    repo: missing\n")

	_, err := service.Validate(t.Context(), ValidateRequest{ConfigPath: path})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}
