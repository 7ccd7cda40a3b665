package types

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDistribution = "main"
	DefaultComponent    = "main"
)

// Config is the desired state: every mirror, repo, snapshot and publish the
// operator declared. It is produced by the config loader and treated as
// read-only afterwards.
type Config struct {
	Mirrors   map[string]Mirror      `yaml:"mirror,omitempty"`
	Repos     map[string]Repo        `yaml:"repo,omitempty"`
	Snapshots map[string]Snapshot    `yaml:"snapshot,omitempty"`
	Publishes map[string]PublishList `yaml:"publish,omitempty"`
}

type Mirror struct {
	Name           string     `yaml:"-"`
	Archive        string     `yaml:"archive,omitempty"`
	ArchiveURL     string     `yaml:"archive-url,omitempty"`
	Distribution   string     `yaml:"distribution,omitempty"`
	Components     StringList `yaml:"components,omitempty"`
	Architectures  StringList `yaml:"architectures,omitempty"`
	GPGKeys        StringList `yaml:"gpg-keys,omitempty"`
	GPGURLs        StringList `yaml:"gpg-urls,omitempty"`
	Sources        bool       `yaml:"sources,omitempty"`
	Udeb           bool       `yaml:"udeb,omitempty"`
	Filter         string     `yaml:"filter,omitempty"`
	FilterWithDeps bool       `yaml:"filter-with-deps,omitempty"`
	MaxTries       int        `yaml:"max-tries,omitempty"`
}

type Repo struct {
	Name          string     `yaml:"-"`
	Distribution  string     `yaml:"distribution,omitempty"`
	Component     string     `yaml:"component,omitempty"`
	Architectures StringList `yaml:"architectures,omitempty"`
	Comment       string     `yaml:"comment,omitempty"`
}

// Timestamp pins the %T placeholder of a snapshot name to a daily or weekly
// slot instead of the current minute.
type Timestamp struct {
	Time         string `yaml:"time"`
	RepeatWeekly string `yaml:"repeat-weekly,omitempty"`
}

// Retention bounds how many rotated snapshots survive. Count keeps the
// newest N, MaxAge keeps everything younger than the duration. A snapshot
// kept by either rule survives.
type Retention struct {
	Count  int    `yaml:"count,omitempty"`
	MaxAge string `yaml:"max-age,omitempty"`
}

func (r *Retention) IsZero() bool {
	return r == nil || (r.Count <= 0 && strings.TrimSpace(r.MaxAge) == "")
}

type Snapshot struct {
	Name         string          `yaml:"-"`
	Mirror       string          `yaml:"mirror,omitempty"`
	Repo         string          `yaml:"repo,omitempty"`
	Merge        []SnapshotRef   `yaml:"merge,omitempty"`
	Filter       *SnapshotFilter `yaml:"filter,omitempty"`
	Timestamp    *Timestamp      `yaml:"timestamp,omitempty"`
	RotateVia    string          `yaml:"rotate_via,omitempty"`
	RotateViaAlt string          `yaml:"rotate-via,omitempty"`
	Retention    *Retention      `yaml:"retention,omitempty"`
}

func (s Snapshot) IsRotating() bool {
	return strings.TrimSpace(s.RotateVia) != ""
}

// Sources lists the snapshot references this snapshot is built from.
func (s Snapshot) Sources() []SnapshotRef {
	refs := append([]SnapshotRef(nil), s.Merge...)
	if s.Filter != nil {
		refs = append(refs, s.Filter.Source)
	}
	return refs
}

type SnapshotFilter struct {
	Source   SnapshotRef `yaml:"source"`
	Query    string      `yaml:"query"`
	WithDeps bool        `yaml:"with-deps,omitempty"`
}

// SnapshotRef points at a snapshot, either by literal name or by a declared
// name template plus a back reference ("current", "previous" or a number of
// slots).
type SnapshotRef struct {
	Name            string `yaml:"name"`
	Timestamp       string `yaml:"timestamp,omitempty"`
	ArchiveOnUpdate string `yaml:"archive-on-update,omitempty"`
}

func (r *SnapshotRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Name = value.Value
		return nil
	}
	type plain SnapshotRef
	var decoded plain
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	*r = SnapshotRef(decoded)
	return nil
}

type Publish struct {
	Name            string        `yaml:"-"`
	Distribution    string        `yaml:"distribution,omitempty"`
	Components      StringList    `yaml:"components,omitempty"`
	Architectures   StringList    `yaml:"architectures,omitempty"`
	GPGKey          string        `yaml:"gpg-key,omitempty"`
	SkipSigning     bool          `yaml:"skip-signing,omitempty"`
	SkipContents    bool          `yaml:"skip-contents,omitempty"`
	Origin          string        `yaml:"origin,omitempty"`
	Label           string        `yaml:"label,omitempty"`
	Endpoint        string        `yaml:"endpoint,omitempty"`
	AutomaticUpdate *bool         `yaml:"automatic-update,omitempty"`
	Retention       *Retention    `yaml:"retention,omitempty"`
	Snapshots       []SnapshotRef `yaml:"snapshots,omitempty"`
	Repo            string        `yaml:"repo,omitempty"`
	Publish         string        `yaml:"publish,omitempty"`
}

// Prefix is the publish prefix as aptly prints it, including the endpoint
// when one is configured.
func (p Publish) Prefix() string {
	if strings.TrimSpace(p.Endpoint) == "" {
		return p.Name
	}
	return p.Endpoint + ":" + p.Name
}

// ID is the "<prefix> <distribution>" identifier used by aptly publish list.
func (p Publish) ID() string {
	return PublishID(p.Prefix(), p.Distribution)
}

func (p Publish) AutoUpdate() bool {
	return p.AutomaticUpdate == nil || *p.AutomaticUpdate
}

// Upstream splits a republish reference "<prefix>/<distribution>" at its
// last slash.
func (p Publish) Upstream() (string, string, bool) {
	ref := strings.TrimSpace(p.Publish)
	idx := strings.LastIndex(ref, "/")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

func PublishID(prefix string, distribution string) string {
	return prefix + " " + distribution
}

// PublishList accepts either a single publish table or a list of them, so a
// publish name can serve several distributions.
type PublishList []Publish

func (l *PublishList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var single Publish
		if err := value.Decode(&single); err != nil {
			return err
		}
		*l = PublishList{single}
		return nil
	}
	var many []Publish
	if err := value.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

// StringList accepts a scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

func (l StringList) Join() string {
	return strings.Join(l, ",")
}

// ApplyDefaults fills names from map keys and the documented defaults:
// distribution and components "main" for mirrors, component "main" for
// repos, components "main" for publishes.
func (c *Config) ApplyDefaults() {
	for name, mirror := range c.Mirrors {
		mirror.Name = name
		if strings.TrimSpace(mirror.Archive) == "" {
			mirror.Archive = mirror.ArchiveURL
		}
		if strings.TrimSpace(mirror.Distribution) == "" {
			mirror.Distribution = DefaultDistribution
		}
		if len(mirror.Components) == 0 {
			mirror.Components = StringList{DefaultComponent}
		}
		c.Mirrors[name] = mirror
	}
	for name, repo := range c.Repos {
		repo.Name = name
		if strings.TrimSpace(repo.Distribution) == "" {
			repo.Distribution = DefaultDistribution
		}
		if strings.TrimSpace(repo.Component) == "" {
			repo.Component = DefaultComponent
		}
		c.Repos[name] = repo
	}
	for name, snapshot := range c.Snapshots {
		snapshot.Name = name
		if snapshot.RotateVia == "" {
			snapshot.RotateVia = snapshot.RotateViaAlt
		}
		c.Snapshots[name] = snapshot
	}
	for name, list := range c.Publishes {
		for i := range list {
			list[i].Name = name
			if len(list[i].Components) == 0 && strings.TrimSpace(list[i].Publish) == "" {
				list[i].Components = StringList{DefaultComponent}
			}
		}
		c.Publishes[name] = list
	}
}

// FindPublish returns the declared publish serving the given prefix and
// distribution.
func (c Config) FindPublish(prefix string, distribution string) (Publish, bool) {
	for _, list := range c.Publishes {
		for _, publish := range list {
			if publish.Prefix() == prefix && publish.Distribution == distribution {
				return publish, true
			}
		}
	}
	return Publish{}, false
}

func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
