package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"aptlyctl/internal/shared"
	"aptlyctl/internal/types"
)

// FakeAptly simulates the aptly CLI in memory and prints list/show output
// in aptly's text format. Publishes reference snapshots by identity, so a
// renamed snapshot stays published under its new name, as in aptly.
type FakeAptly struct {
	mu sync.Mutex

	Version string
	Now     func() time.Time
	// FailOn, when set, may fail a call before it is applied.
	FailOn func(args []string) error

	calls     [][]string
	nextID    int
	mirrors   map[string]fakeMirror
	repos     map[string]fakeRepo
	snapshots map[string]*fakeSnapshot
	publishes map[string]*fakePublish
}

type fakeMirror struct {
	name          string
	archive       string
	distribution  string
	components    []string
	architectures []string
	updated       bool
}

type fakeRepo struct {
	name         string
	distribution string
	component    string
}

type fakeSnapshot struct {
	id        int
	name      string
	createdAt time.Time
	sources   []int
}

type fakeSource struct {
	component string
	snapshot  int
	repo      string
}

type fakePublish struct {
	prefix       string
	distribution string
	sources      []fakeSource
}

func NewFakeAptly() *FakeAptly {
	return &FakeAptly{
		Version:   "1.5.0",
		Now:       func() time.Time { return time.Date(2012, 10, 10, 10, 10, 10, 0, time.UTC) },
		mirrors:   map[string]fakeMirror{},
		repos:     map[string]fakeRepo{},
		snapshots: map[string]*fakeSnapshot{},
		publishes: map[string]*fakePublish{},
	}
}

// Calls returns every invocation, including failed ones.
func (f *FakeAptly) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Mutations returns the invocations that change state, joined by spaces.
func (f *FakeAptly) Mutations() []string {
	var out []string
	for _, call := range f.Calls() {
		if isReadOnly(call) {
			continue
		}
		out = append(out, strings.Join(call, " "))
	}
	return out
}

func (f *FakeAptly) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Snapshots lists the snapshot names aptly knows.
func (f *FakeAptly) Snapshots() types.Set {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := types.Set{}
	for name := range f.snapshots {
		set.Add(name)
	}
	return set
}

// AddMirror seeds an already existing mirror.
func (f *FakeAptly) AddMirror(name string, archive string, distribution string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mirrors[name] = fakeMirror{name: name, archive: archive, distribution: distribution, components: []string{"main"}}
}

// AddSnapshot seeds an existing snapshot without sources.
func (f *FakeAptly) AddSnapshot(name string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.snapshots[name] = &fakeSnapshot{id: f.nextID, name: name, createdAt: createdAt}
}

func (f *FakeAptly) Aptly(ctx context.Context, args ...string) (types.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), args...))
	result := types.CommandResult{Args: append([]string{"aptly"}, args...)}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if f.FailOn != nil {
		if err := f.FailOn(args); err != nil {
			return f.fail(result, err.Error())
		}
	}
	stdout, err := f.dispatch(args)
	if err != nil {
		return f.fail(result, err.Error())
	}
	result.Stdout = stdout
	return result, nil
}

func (f *FakeAptly) fail(result types.CommandResult, stderr string) (types.CommandResult, error) {
	result.ExitCode = 1
	result.Stderr = stderr
	return result, shared.CommandFailed("aptly", stderr, errors.New("exit status 1"))
}

func (f *FakeAptly) dispatch(args []string) (string, error) {
	if len(args) == 1 && args[0] == "version" {
		return fmt.Sprintf("aptly version: %s\n", f.Version), nil
	}
	if len(args) < 2 {
		return "", fmt.Errorf("unknown command %v", args)
	}
	flags, positional := splitFlags(args[2:])
	switch args[0] + " " + args[1] {
	case "mirror create":
		return "", f.mirrorCreate(flags, positional)
	case "mirror update":
		return "", f.mirrorUpdate(positional)
	case "mirror list":
		return rawList(f.mirrors), nil
	case "mirror show":
		return f.mirrorShow(positional)
	case "repo create":
		return "", f.repoCreate(flags, positional)
	case "repo list":
		return rawList(f.repos), nil
	case "snapshot create":
		return "", f.snapshotCreate(positional)
	case "snapshot merge":
		return "", f.snapshotMerge(positional)
	case "snapshot filter":
		return "", f.snapshotFilter(positional)
	case "snapshot rename":
		return "", f.snapshotRename(positional)
	case "snapshot drop":
		return "", f.snapshotDrop(flags, positional)
	case "snapshot list":
		return rawList(f.snapshots), nil
	case "snapshot show":
		return f.snapshotShow(positional)
	case "publish snapshot":
		return "", f.publishSnapshot(flags, positional)
	case "publish repo":
		return "", f.publishRepo(flags, positional)
	case "publish switch":
		return "", f.publishSwitch(flags, positional)
	case "publish update":
		return "", f.publishUpdate(positional)
	case "publish list":
		return f.publishList(), nil
	case "publish show":
		return f.publishShow(positional)
	}
	return "", fmt.Errorf("unknown command %v", args)
}

func (f *FakeAptly) mirrorCreate(flags map[string]string, args []string) error {
	if len(args) < 3 {
		return errors.New("mirror create: usage")
	}
	if _, ok := f.mirrors[args[0]]; ok {
		return fmt.Errorf("unable to add mirror: mirror with name %s already exists", args[0])
	}
	f.mirrors[args[0]] = fakeMirror{
		name:          args[0],
		archive:       args[1],
		distribution:  args[2],
		components:    args[3:],
		architectures: splitComma(flags["architectures"]),
	}
	return nil
}

func (f *FakeAptly) mirrorUpdate(args []string) error {
	if len(args) != 1 {
		return errors.New("mirror update: usage")
	}
	mirror, ok := f.mirrors[args[0]]
	if !ok {
		return fmt.Errorf("unable to update: mirror with name %s not found", args[0])
	}
	mirror.updated = true
	f.mirrors[args[0]] = mirror
	return nil
}

func (f *FakeAptly) mirrorShow(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("mirror show: usage")
	}
	mirror, ok := f.mirrors[args[0]]
	if !ok {
		return "", fmt.Errorf("unable to show: mirror with name %s not found", args[0])
	}
	lastUpdate := "never"
	if mirror.updated {
		lastUpdate = f.Now().UTC().Format("2006-01-02 15:04:05 MST")
	}
	return fmt.Sprintf("Name: %s\nArchive Root URL: %s\nDistribution: %s\nComponents: %s\nArchitectures: %s\nLast update: %s\n",
		mirror.name, mirror.archive, mirror.distribution,
		strings.Join(mirror.components, ", "), strings.Join(mirror.architectures, ", "), lastUpdate), nil
}

func (f *FakeAptly) repoCreate(flags map[string]string, args []string) error {
	if len(args) != 1 {
		return errors.New("repo create: usage")
	}
	if _, ok := f.repos[args[0]]; ok {
		return fmt.Errorf("unable to add local repo: local repo with name %s already exists", args[0])
	}
	f.repos[args[0]] = fakeRepo{name: args[0], distribution: flags["distribution"], component: flags["component"]}
	return nil
}

func (f *FakeAptly) addSnapshot(name string, sources []int) error {
	if _, ok := f.snapshots[name]; ok {
		return fmt.Errorf("unable to create snapshot: snapshot with name %s already exists", name)
	}
	f.nextID++
	f.snapshots[name] = &fakeSnapshot{id: f.nextID, name: name, createdAt: f.Now().UTC(), sources: sources}
	return nil
}

func (f *FakeAptly) snapshotCreate(args []string) error {
	if len(args) != 4 || args[1] != "from" {
		return errors.New("snapshot create: usage")
	}
	switch args[2] {
	case "mirror":
		if _, ok := f.mirrors[args[3]]; !ok {
			return fmt.Errorf("unable to create snapshot: mirror with name %s not found", args[3])
		}
	case "repo":
		if _, ok := f.repos[args[3]]; !ok {
			return fmt.Errorf("unable to create snapshot: local repo with name %s not found", args[3])
		}
	default:
		return errors.New("snapshot create: usage")
	}
	return f.addSnapshot(args[0], nil)
}

func (f *FakeAptly) snapshotMerge(args []string) error {
	if len(args) < 2 {
		return errors.New("snapshot merge: usage")
	}
	sources, err := f.snapshotIDs(args[1:])
	if err != nil {
		return err
	}
	return f.addSnapshot(args[0], sources)
}

func (f *FakeAptly) snapshotFilter(args []string) error {
	if len(args) != 3 {
		return errors.New("snapshot filter: usage")
	}
	sources, err := f.snapshotIDs(args[:1])
	if err != nil {
		return err
	}
	return f.addSnapshot(args[1], sources)
}

func (f *FakeAptly) snapshotRename(args []string) error {
	if len(args) != 2 {
		return errors.New("snapshot rename: usage")
	}
	snapshot, ok := f.snapshots[args[0]]
	if !ok {
		return fmt.Errorf("unable to rename: snapshot %s not found", args[0])
	}
	if _, exists := f.snapshots[args[1]]; exists {
		return fmt.Errorf("unable to rename: snapshot %s already exists", args[1])
	}
	delete(f.snapshots, args[0])
	snapshot.name = args[1]
	f.snapshots[args[1]] = snapshot
	return nil
}

func (f *FakeAptly) snapshotDrop(flags map[string]string, args []string) error {
	if len(args) != 1 {
		return errors.New("snapshot drop: usage")
	}
	snapshot, ok := f.snapshots[args[0]]
	if !ok {
		return fmt.Errorf("unable to drop: snapshot %s not found", args[0])
	}
	for _, publish := range f.publishes {
		for _, source := range publish.sources {
			if source.repo == "" && source.snapshot == snapshot.id {
				return fmt.Errorf("unable to drop: snapshot is published")
			}
		}
	}
	if _, force := flags["force"]; !force {
		for _, other := range f.snapshots {
			for _, source := range other.sources {
				if source == snapshot.id {
					return fmt.Errorf("won't delete snapshot that was used as source for other snapshots, use -force to override")
				}
			}
		}
	}
	delete(f.snapshots, args[0])
	return nil
}

func (f *FakeAptly) snapshotShow(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("snapshot show: usage")
	}
	snapshot, ok := f.snapshots[args[0]]
	if !ok {
		return "", fmt.Errorf("unable to show: snapshot %s not found", args[0])
	}
	return fmt.Sprintf("Name: %s\nCreated At: %s\nDescription: Snapshot\nNumber of packages: 0\n",
		snapshot.name, snapshot.createdAt.Format("2006-01-02 15:04:05 MST")), nil
}

func (f *FakeAptly) publishSnapshot(flags map[string]string, args []string) error {
	if len(args) < 2 {
		return errors.New("publish snapshot: usage")
	}
	prefix := args[len(args)-1]
	ids, err := f.snapshotIDs(args[:len(args)-1])
	if err != nil {
		return err
	}
	components := splitComma(flags["component"])
	if len(components) == 0 {
		components = []string{"main"}
	}
	if len(components) != len(ids) {
		return fmt.Errorf("mismatch in number of components (%d) and snapshots (%d)", len(components), len(ids))
	}
	sources := make([]fakeSource, 0, len(ids))
	for i, id := range ids {
		sources = append(sources, fakeSource{component: components[i], snapshot: id})
	}
	return f.addPublish(prefix, flags["distribution"], sources)
}

func (f *FakeAptly) publishRepo(flags map[string]string, args []string) error {
	if len(args) != 2 {
		return errors.New("publish repo: usage")
	}
	if _, ok := f.repos[args[0]]; !ok {
		return fmt.Errorf("unable to publish: local repo %s not found", args[0])
	}
	component := flags["component"]
	if component == "" {
		component = "main"
	}
	return f.addPublish(args[1], flags["distribution"], []fakeSource{{component: component, repo: args[0]}})
}

func (f *FakeAptly) addPublish(prefix string, distribution string, sources []fakeSource) error {
	if distribution == "" {
		return errors.New("unable to publish: distribution is empty")
	}
	id := types.PublishID(prefix, distribution)
	if _, ok := f.publishes[id]; ok {
		return fmt.Errorf("prefix/distribution already used by another published repo: %s", id)
	}
	f.publishes[id] = &fakePublish{prefix: prefix, distribution: distribution, sources: sources}
	return nil
}

func (f *FakeAptly) publishSwitch(flags map[string]string, args []string) error {
	if len(args) < 3 {
		return errors.New("publish switch: usage")
	}
	publish, ok := f.publishes[types.PublishID(args[1], args[0])]
	if !ok {
		return fmt.Errorf("unable to update: published repo with prefix/distribution %s/%s not found", args[1], args[0])
	}
	ids, err := f.snapshotIDs(args[2:])
	if err != nil {
		return err
	}
	components := splitComma(flags["component"])
	if len(components) == 0 {
		components = []string{"main"}
	}
	if len(components) != len(ids) {
		return fmt.Errorf("mismatch in number of components (%d) and snapshots (%d)", len(components), len(ids))
	}
	sources := make([]fakeSource, 0, len(ids))
	for i, id := range ids {
		sources = append(sources, fakeSource{component: components[i], snapshot: id})
	}
	publish.sources = sources
	return nil
}

func (f *FakeAptly) publishUpdate(args []string) error {
	if len(args) != 2 {
		return errors.New("publish update: usage")
	}
	if _, ok := f.publishes[types.PublishID(args[1], args[0])]; !ok {
		return fmt.Errorf("unable to update: published repo with prefix/distribution %s/%s not found", args[1], args[0])
	}
	return nil
}

func (f *FakeAptly) publishList() string {
	ids := make([]string, 0, len(f.publishes))
	for id := range f.publishes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return strings.Join(ids, "\n") + "\n"
}

func (f *FakeAptly) publishShow(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("publish show: usage")
	}
	publish, ok := f.publishes[types.PublishID(args[1], args[0])]
	if !ok {
		return "", fmt.Errorf("unable to show: published repo with prefix/distribution %s/%s not found", args[1], args[0])
	}
	var out strings.Builder
	fmt.Fprintf(&out, "Prefix: %s\nDistribution: %s\nArchitectures: amd64\nSources:\n", publish.prefix, publish.distribution)
	for _, source := range publish.sources {
		if source.repo != "" {
			fmt.Fprintf(&out, "  %s: %s [local]\n", source.component, source.repo)
			continue
		}
		fmt.Fprintf(&out, "  %s: %s [snapshot]\n", source.component, f.snapshotName(source.snapshot))
	}
	return out.String(), nil
}

func (f *FakeAptly) snapshotIDs(names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		snapshot, ok := f.snapshots[name]
		if !ok {
			return nil, fmt.Errorf("unable to load snapshot %s: snapshot not found", name)
		}
		ids = append(ids, snapshot.id)
	}
	return ids, nil
}

func (f *FakeAptly) snapshotName(id int) string {
	for name, snapshot := range f.snapshots {
		if snapshot.id == id {
			return name
		}
	}
	return ""
}

func splitFlags(args []string) (map[string]string, []string) {
	flags := map[string]string{}
	var positional []string
	for _, arg := range args {
		if len(positional) == 0 && strings.HasPrefix(arg, "-") {
			key, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
			flags[key] = value
			continue
		}
		positional = append(positional, arg)
	}
	return flags, positional
}

func splitComma(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func rawList[T any](entries map[string]T) string {
	names := types.SortedKeys(entries)
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "\n") + "\n"
}

func isReadOnly(call []string) bool {
	if len(call) == 1 && call[0] == "version" {
		return true
	}
	return len(call) >= 2 && (call[1] == "list" || call[1] == "show")
}
