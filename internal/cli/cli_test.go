package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptlyctl/tests/testutil"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{
		"mirror", "repo", "snapshot", "publish",
		"state", "sync", "watch", "validate", "inspect", "prune",
	}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestEntityCommandsHaveActions(t *testing.T) {
	root := newRootCommand()
	for _, entity := range []string{"mirror", "repo", "snapshot", "publish"} {
		cmd, _, err := root.Find([]string{entity})
		require.NoError(t, err)
		for _, action := range []string{"create", "update"} {
			sub, _, err := cmd.Find([]string{action})
			require.NoError(t, err)
			assert.Equal(t, action, sub.Name(), "%s %s", entity, action)
			assert.Error(t, sub.Args(sub, []string{"a", "b"}), "%s %s accepts at most one name", entity, action)
		}
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	flags := []string{
		"config", "settings", "env-file", "log-level",
		"aptly-bin", "aptly-config", "gpg-bin", "keyring",
		"keyserver", "min-aptly-version",
	}
	for _, name := range flags {
		flag := root.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestWatchAndPruneFlags(t *testing.T) {
	assert.NotNil(t, newWatchCommand().Flags().Lookup("interval"))
	dryRun := newPruneCommand().Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "true", dryRun.DefValue)
}

// ---------- End-to-end without aptly ----------

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "aptly.toml", `
[mirror.fakerepo01]
archive = "http://localhost:3123/fakerepo01"

[snapshot."fakerepo01-%T"]
mirror = "fakerepo01"

[publish.fakerepo01]
distribution = "main"
snapshots = ["fakerepo01-%T"]
`)

	out, err := executeRoot(t, "--config", path, "validate")
	require.NoError(t, err)
	assert.Equal(t, "validated: 1 mirrors, 0 repos, 1 snapshots, 1 publishes\n", out)
}

func TestValidateCommandInvalidReference(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "aptly.yaml", "publish:\n  p:\n    distribution: main\n    repo: missing\n")

	_, err := executeRoot(t, "--config", path, "validate")
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeForError(err))
}

func TestEnvFileSetsConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "aptly.yaml", "repo:\n  local: {}\n")
	envFile := testutil.WriteFile(t, dir, ".env", "APTLYCTL_CONFIG="+path+"\n")
	t.Setenv("APTLYCTL_CONFIG", "")

	out, err := executeRoot(t, "--env-file", envFile, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "1 repos")
}

func TestSettingsFromViper(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "aptly.yaml", "repo:\n  local: {}\n")

	_, err := executeRoot(t, "--config", path, "--aptly-bin", "/opt/aptly", "--keyserver", "hkp://keys.example", "validate")
	require.NoError(t, err)

	settings := settingsFromViper()
	assert.Equal(t, "/opt/aptly", settings.AptlyBinary)
	assert.Equal(t, "hkp://keys.example", settings.Keyserver)
	assert.Equal(t, "trustedkeys.gpg", settings.Keyring)
}

// ---------- Helper function tests ----------

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestResolveDuration(t *testing.T) {
	got := resolveDuration(nil, time.Minute, "test_key", "test-flag")
	assert.Equal(t, time.Minute, got)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Duration("interval", time.Hour, "test flag")
	require.NoError(t, cmd.Flags().Set("interval", "5m"))
	assert.Equal(t, 5*time.Minute, resolveDuration(cmd, 5*time.Minute, "test_key", "interval"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid config",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "invalid reference",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("unknown publish: asdfasdf"),
			expected: 2,
		},
		{
			name: "unresolved dependency",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("unresolved dependency: snapshot missing"),
			expected: 4,
		},
		{
			name: "command failure",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("aptly command failed"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
