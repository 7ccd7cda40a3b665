package types

import (
	"sort"
	"time"
)

// Set is an unordered collection of names.
type Set map[string]struct{}

func NewSet(values ...string) Set {
	set := Set{}
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func (s Set) Add(value string) {
	s[value] = struct{}{}
}

func (s Set) Remove(value string) {
	delete(s, value)
}

func (s Set) Has(value string) bool {
	_, ok := s[value]
	return ok
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for value := range s {
		if !other.Has(value) {
			return false
		}
	}
	return true
}

func (s Set) Clone() Set {
	clone := make(Set, len(s))
	for value := range s {
		clone[value] = struct{}{}
	}
	return clone
}

func (s Set) Sorted() []string {
	values := make([]string, 0, len(s))
	for value := range s {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

func (s Set) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// SystemState is what aptly currently reports. It is rebuilt from command
// output on every read and never persisted.
type SystemState struct {
	Mirrors   Set `yaml:"mirrors"`
	Repos     Set `yaml:"repos"`
	Snapshots Set `yaml:"snapshots"`
	Publishes Set `yaml:"publishes"`
	// PublishMap maps a publish id to the snapshots it serves. Repo
	// publishes map to an empty set.
	PublishMap map[string]Set `yaml:"publish_map"`
	// PublishSources keeps the component of every published snapshot so a
	// republish can reproduce the component order.
	PublishSources map[string]map[string]string `yaml:"-"`
}

func NewSystemState() SystemState {
	return SystemState{
		Mirrors:        Set{},
		Repos:          Set{},
		Snapshots:      Set{},
		Publishes:      Set{},
		PublishMap:     map[string]Set{},
		PublishSources: map[string]map[string]string{},
	}
}

func (s SystemState) Clone() SystemState {
	clone := SystemState{
		Mirrors:        s.Mirrors.Clone(),
		Repos:          s.Repos.Clone(),
		Snapshots:      s.Snapshots.Clone(),
		Publishes:      s.Publishes.Clone(),
		PublishMap:     make(map[string]Set, len(s.PublishMap)),
		PublishSources: make(map[string]map[string]string, len(s.PublishSources)),
	}
	for id, set := range s.PublishMap {
		clone.PublishMap[id] = set.Clone()
	}
	for id, sources := range s.PublishSources {
		copied := make(map[string]string, len(sources))
		for component, name := range sources {
			copied[component] = name
		}
		clone.PublishSources[id] = copied
	}
	return clone
}

// Has reports whether an entity of the given kind is present.
func (s SystemState) Has(kind EntityKind, name string) bool {
	switch kind {
	case EntityMirror:
		return s.Mirrors.Has(name)
	case EntityRepo:
		return s.Repos.Has(name)
	case EntitySnapshot:
		return s.Snapshots.Has(name)
	case EntityPublish:
		return s.Publishes.Has(name)
	default:
		return false
	}
}

// SetPublish records a publish and the snapshots it serves, keyed by
// component.
func (s *SystemState) SetPublish(id string, sources map[string]string) {
	s.Publishes.Add(id)
	set := Set{}
	copied := make(map[string]string, len(sources))
	for component, name := range sources {
		set.Add(name)
		copied[component] = name
	}
	s.PublishMap[id] = set
	s.PublishSources[id] = copied
}

// RenameSnapshot mirrors aptly, which binds publishes to snapshots by
// identity: a renamed snapshot stays published under its new name.
func (s *SystemState) RenameSnapshot(from string, to string) {
	s.Snapshots.Remove(from)
	s.Snapshots.Add(to)
	for id, set := range s.PublishMap {
		if set.Has(from) {
			set.Remove(from)
			set.Add(to)
		}
		for component, name := range s.PublishSources[id] {
			if name == from {
				s.PublishSources[id][component] = to
			}
		}
	}
}

// PublishedBy returns the id of the first publish serving the snapshot.
func (s SystemState) PublishedBy(snapshot string) (string, bool) {
	for _, id := range SortedKeys(s.PublishMap) {
		if s.PublishMap[id].Has(snapshot) {
			return id, true
		}
	}
	return "", false
}

type MirrorRecord struct {
	Name          string
	ArchiveURL    string
	Distribution  string
	Components    []string
	Architectures []string
	LastUpdate    string
}

type SnapshotRecord struct {
	Name        string
	Description string
	CreatedAt   time.Time
}

type PublishSource struct {
	Component string
	Name      string
	Kind      string
}

type PublishRecord struct {
	Prefix        string
	Distribution  string
	Architectures []string
	Sources       []PublishSource
}

type ToolVersion struct {
	Raw string
}

// CommandResult is the captured outcome of one external command.
type CommandResult struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunReport lists the commands a convergence run executed.
type RunReport struct {
	Commands []string
	Pruned   []string
	Skipped  []string
}

func (r *RunReport) Merge(other RunReport) {
	r.Commands = append(r.Commands, other.Commands...)
	r.Pruned = append(r.Pruned, other.Pruned...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// PublishStatus compares one declared publish with what aptly serves.
type PublishStatus struct {
	ID      string
	Variant PublishVariant
	Present bool
	Desired []string
	Actual  []string
	InSync  bool
	// Problem explains why Desired could not be computed.
	Problem string
}
