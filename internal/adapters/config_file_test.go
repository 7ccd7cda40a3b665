package adapters

import (
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
	"aptlyctl/tests/testutil"
)

const tomlConfig = `
[mirror.fakerepo01]
archive = "http://localhost:3123/fakerepo01"
gpg-keys = ["2841988729C7F3FF"]
components = "main"

[snapshot."fakerepo01-%T"]
mirror = "fakerepo01"
timestamp = {"time" = "00:00"}

[publish.fakerepo01]
distribution = "main"
snapshots = [ { name = "fakerepo01-%T", timestamp = "current", archive-on-update = "archived-fakerepo01-%T" } ]
`

func TestLoadTOMLConfig(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "aptly.toml", tomlConfig)

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)

	mirror := cfg.Mirrors["fakerepo01"]
	assert.Equal(t, "fakerepo01", mirror.Name)
	assert.Equal(t, "http://localhost:3123/fakerepo01", mirror.Archive)
	assert.Equal(t, "main", mirror.Distribution)
	assert.Equal(t, types.StringList{"main"}, mirror.Components)
	assert.Equal(t, types.StringList{"2841988729C7F3FF"}, mirror.GPGKeys)

	snapshot := cfg.Snapshots["fakerepo01-%T"]
	require.NotNil(t, snapshot.Timestamp)
	assert.Equal(t, "00:00", snapshot.Timestamp.Time)

	publishes := cfg.Publishes["fakerepo01"]
	require.Len(t, publishes, 1)
	assert.Equal(t, types.StringList{"main"}, publishes[0].Components)
	assert.Equal(t, []types.SnapshotRef{{
		Name:            "fakerepo01-%T",
		Timestamp:       "current",
		ArchiveOnUpdate: "archived-fakerepo01-%T",
	}}, publishes[0].Snapshots)
}

func TestLoadYAMLConfigWithPublishList(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "aptly.yaml", `
repo:
  internal:
    distribution: stable
publish:
  internal:
    - distribution: stable
      repo: internal
    - distribution: testing
      repo: internal
      automatic-update: false
snapshot:
  plain:
    merge: [a, {name: b-%T, timestamp: previous}]
`)

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Repos["internal"].Component)
	publishes := cfg.Publishes["internal"]
	require.Len(t, publishes, 2)
	assert.True(t, publishes[0].AutoUpdate())
	assert.False(t, publishes[1].AutoUpdate())
	assert.Equal(t, "internal testing", publishes[1].ID())
	assert.Equal(t, []types.SnapshotRef{{Name: "a"}, {Name: "b-%T", Timestamp: "previous"}}, cfg.Snapshots["plain"].Merge)
}

func TestLoadMergesIncludedFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, filepath.Join("conf.d", "override.yaml"), `
mirror:
  debian:
    distribution: trixie
    gpg-keys: !delete
`)
	path := testutil.WriteFile(t, dir, "aptly.yaml", `
merge: conf.d/override.yaml
mirror:
  debian:
    archive: http://deb.debian.org/debian
    distribution: bookworm
    gpg-keys: [ABCDEF0123456789]
`)

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)

	mirror := cfg.Mirrors["debian"]
	assert.Equal(t, "http://deb.debian.org/debian", mirror.Archive)
	assert.Equal(t, "trixie", mirror.Distribution)
	assert.Empty(t, mirror.GPGKeys)
}

func TestLoadMergesTOMLIntoYAML(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "extra.toml", `
[repo.extra]
comment = "from toml"
`)
	path := testutil.WriteFile(t, dir, "aptly.yml", "merge: [extra.toml]\nrepo:\n  base: {}\n")

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "extra"}, types.SortedKeys(cfg.Repos))
	assert.Equal(t, "from toml", cfg.Repos["extra"].Comment)
}

func TestLoadRejectsMergeCycle(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.yaml", "merge: a.yaml\n")
	path := testutil.WriteFile(t, dir, "a.yaml", "merge: b.yaml\n")

	_, err := NewConfigFileAdapter().Load(path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "merge cycle")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		code errbuilder.ErrCode
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.yaml"), code: errbuilder.CodeInvalidArgument},
		{name: "broken toml", path: testutil.WriteFile(t, dir, "broken.toml", "[mirror\n"), code: errbuilder.CodeInvalidArgument},
		{name: "not a mapping", path: testutil.WriteFile(t, dir, "list.yaml", "- a\n- b\n"), code: errbuilder.CodeInvalidArgument},
		{name: "unsupported format", path: testutil.WriteFile(t, dir, "aptly.json", "{}"), code: errbuilder.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFileAdapter().Load(tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.code, errbuilder.CodeOf(err))
			assert.False(t, shared.IsInvalidReference(err), "file errors are not entity references")
		})
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "empty.yaml", "")

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Mirrors)
	assert.NotNil(t, cfg.Publishes)
}

func TestLoadAppliesEntityDefaults(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "aptly.yaml", `
mirror:
  upstream:
    archive-url: http://localhost:3123/upstream
repo:
  local: {}
`)

	cfg, err := NewConfigFileAdapter().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Mirrors["upstream"].Distribution)
	assert.Equal(t, types.StringList{"main"}, cfg.Mirrors["upstream"].Components)
	assert.Equal(t, "main", cfg.Repos["local"].Distribution)
	assert.Equal(t, "main", cfg.Repos["local"].Component)
}
