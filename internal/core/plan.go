package core

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

type dependency struct {
	kind types.EntityKind
	name string
}

// Command is one aptly invocation plus what it needs and produces. The
// effect is applied to the in-memory state once the command succeeded.
type Command struct {
	Args       []string
	provides   []dependency
	requires   []dependency
	effect     func(*types.SystemState)
	bestEffort bool
}

func NewCommand(args ...string) *Command {
	return &Command{Args: args}
}

func (c *Command) Provide(kind types.EntityKind, name string) *Command {
	c.provides = append(c.provides, dependency{kind: kind, name: name})
	return c
}

func (c *Command) Require(kind types.EntityKind, name string) *Command {
	c.requires = append(c.requires, dependency{kind: kind, name: name})
	return c
}

func (c *Command) OnSuccess(effect func(*types.SystemState)) *Command {
	c.effect = effect
	return c
}

// BestEffort marks a command whose failure is logged and skipped.
func (c *Command) BestEffort() *Command {
	c.bestEffort = true
	return c
}

func (c *Command) String() string {
	return strings.Join(c.Args, " ")
}

// OrderCommands sorts a batch so every command runs after the commands
// providing what it requires. Ties keep the planning order. A requirement
// that neither the batch nor the state satisfies is an unresolved
// dependency.
func OrderCommands(commands []*Command, state types.SystemState) ([]*Command, error) {
	providers := map[dependency][]int{}
	for i, command := range commands {
		for _, provided := range command.provides {
			providers[provided] = append(providers[provided], i)
		}
	}

	indegree := make([]int, len(commands))
	edges := make([][]int, len(commands))
	for i, command := range commands {
		for _, required := range command.requires {
			sources := providers[required]
			if len(sources) == 0 {
				if !state.Has(required.kind, required.name) {
					return nil, shared.UnresolvedDependency(string(required.kind), required.name)
				}
				continue
			}
			for _, source := range sources {
				if source == i {
					continue
				}
				edges[source] = append(edges[source], i)
				indegree[i]++
			}
		}
	}

	ordered := make([]*Command, 0, len(commands))
	done := make([]bool, len(commands))
	for len(ordered) < len(commands) {
		next := -1
		for i := range commands {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("command dependency cycle")
		}
		done[next] = true
		ordered = append(ordered, commands[next])
		for _, target := range edges[next] {
			indegree[target]--
		}
	}
	return ordered, nil
}
