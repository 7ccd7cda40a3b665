package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"aptlyctl/internal/types"
)

func commandStrings(commands []*Command) []string {
	out := make([]string, 0, len(commands))
	for _, command := range commands {
		out = append(out, command.String())
	}
	return out
}

func TestOrderCommandsFollowsProviders(t *testing.T) {
	state := types.NewSystemState()
	state.Mirrors.Add("m1")
	commands := []*Command{
		NewCommand("snapshot", "merge", "merged", "a", "b").
			Require(types.EntitySnapshot, "a").
			Require(types.EntitySnapshot, "b").
			Provide(types.EntitySnapshot, "merged"),
		NewCommand("snapshot", "create", "b", "from", "mirror", "m1").
			Require(types.EntityMirror, "m1").
			Provide(types.EntitySnapshot, "b"),
		NewCommand("snapshot", "create", "a", "from", "mirror", "m1").
			Require(types.EntityMirror, "m1").
			Provide(types.EntitySnapshot, "a"),
	}

	ordered, err := OrderCommands(commands, state)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{
		"snapshot create b from mirror m1",
		"snapshot create a from mirror m1",
		"snapshot merge merged a b",
	}, commandStrings(ordered)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestOrderCommandsRotationBeforeRecreate(t *testing.T) {
	state := types.NewSystemState()
	state.Snapshots.Add("x-current")
	commands := []*Command{
		NewCommand("snapshot", "create", "x-current", "from", "repo", "r").
			Require(types.EntityRotation, "x-current").
			Require(types.EntityRepo, "r").
			Provide(types.EntitySnapshot, "x-current"),
		NewCommand("snapshot", "rename", "x-current", "x-rotated").
			Provide(types.EntityRotation, "x-current").
			Provide(types.EntitySnapshot, "x-rotated"),
		NewCommand("repo", "create", "r").Provide(types.EntityRepo, "r"),
	}

	ordered, err := OrderCommands(commands, state)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{
		"snapshot rename x-current x-rotated",
		"repo create r",
		"snapshot create x-current from repo r",
	}, commandStrings(ordered)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestOrderCommandsKeepsPlanningOrderForIndependentCommands(t *testing.T) {
	commands := []*Command{
		NewCommand("mirror", "update", "b"),
		NewCommand("mirror", "update", "a"),
	}

	ordered, err := OrderCommands(commands, types.NewSystemState())
	require.NoError(t, err)
	require.Equal(t, []string{"mirror update b", "mirror update a"}, commandStrings(ordered))
}

func TestOrderCommandsUnresolvedDependency(t *testing.T) {
	commands := []*Command{
		NewCommand("publish", "snapshot", "-distribution=main", "missing", "prefix").
			Require(types.EntitySnapshot, "missing"),
	}

	_, err := OrderCommands(commands, types.NewSystemState())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	require.Contains(t, err.Error(), "unresolved dependency: snapshot missing")
}

func TestOrderCommandsDetectsCycle(t *testing.T) {
	commands := []*Command{
		NewCommand("one").Require(types.EntitySnapshot, "b").Provide(types.EntitySnapshot, "a"),
		NewCommand("two").Require(types.EntitySnapshot, "a").Provide(types.EntitySnapshot, "b"),
	}

	_, err := OrderCommands(commands, types.NewSystemState())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}
