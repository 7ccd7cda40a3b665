package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/types"
)

// DeleteTag marks a YAML value that removes the key from the merged
// document, e.g. `gpg-keys: !delete`.
const DeleteTag = "!delete"

const mergeKey = "merge"

// deleteMarker is the typed stand-in for a DeleteTag value while documents
// are merged. It never survives into the final config.
type deleteMarker struct{}

// ConfigFileAdapter loads desired state from TOML or YAML. A top-level
// "merge" list names further files, relative to the including file, whose
// keys override the includer's.
type ConfigFileAdapter struct{}

func NewConfigFileAdapter() ConfigFileAdapter {
	return ConfigFileAdapter{}
}

func (a ConfigFileAdapter) Load(path string) (types.Config, error) {
	tree, err := a.loadTree(path, map[string]struct{}{})
	if err != nil {
		return types.Config{}, err
	}
	data, err := yaml.Marshal(stripDeleteMarkers(tree))
	if err != nil {
		return types.Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode merged config").
			WithCause(err)
	}
	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid config %s", path)).
			WithCause(err)
	}
	if cfg.Mirrors == nil {
		cfg.Mirrors = map[string]types.Mirror{}
	}
	if cfg.Repos == nil {
		cfg.Repos = map[string]types.Repo{}
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = map[string]types.Snapshot{}
	}
	if cfg.Publishes == nil {
		cfg.Publishes = map[string]types.PublishList{}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (a ConfigFileAdapter) loadTree(path string, visiting map[string]struct{}) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, ok := visiting[abs]; ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("config merge cycle at %s", path))
	}
	visiting[abs] = struct{}{}
	defer delete(visiting, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("cannot read config file %s", path)).
			WithCause(err)
	}
	tree, err := decodeTree(path, data)
	if err != nil {
		return nil, err
	}
	includes, err := mergeIncludes(tree[mergeKey])
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid merge list in %s", path)).
			WithCause(err)
	}
	delete(tree, mergeKey)
	for _, include := range includes {
		if !filepath.IsAbs(include) {
			include = filepath.Join(filepath.Dir(path), include)
		}
		included, err := a.loadTree(include, visiting)
		if err != nil {
			return nil, err
		}
		merged, _ := mergeTrees(tree, included).(map[string]any)
		tree = merged
	}
	return tree, nil
}

func decodeTree(path string, data []byte) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to parse toml config %s", path)).
				WithCause(err)
		}
		tree, _ := normalizeTOML(raw).(map[string]any)
		if tree == nil {
			tree = map[string]any{}
		}
		return tree, nil
	case ".yaml", ".yml", "":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to parse yaml config %s", path)).
				WithCause(err)
		}
		if doc.Kind == 0 {
			return map[string]any{}, nil
		}
		value, err := nodeValue(&doc)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to read yaml config %s", path)).
				WithCause(err)
		}
		if value == nil {
			return map[string]any{}, nil
		}
		tree, ok := value.(map[string]any)
		if !ok {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("config %s is not a mapping", path))
		}
		return tree, nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported config format: %s", path))
	}
}

// nodeValue converts a YAML node into plain maps, slices and scalars,
// turning DeleteTag values into deleteMarker.
func nodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return nodeValue(node.Content[0])
	case yaml.AliasNode:
		return nodeValue(node.Alias)
	case yaml.MappingNode:
		if node.Tag == DeleteTag {
			return deleteMarker{}, nil
		}
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := nodeValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = value
		}
		return out, nil
	case yaml.SequenceNode:
		if node.Tag == DeleteTag {
			return deleteMarker{}, nil
		}
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := nodeValue(child)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	default:
		if node.Tag == DeleteTag {
			return deleteMarker{}, nil
		}
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return value, nil
	}
}

func normalizeTOML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = normalizeTOML(child)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, child := range typed {
			out = append(out, normalizeTOML(child))
		}
		return out
	case fmt.Stringer:
		return typed.String()
	default:
		return value
	}
}

// mergeTrees overlays b onto a. Mappings merge key by key, a deleteMarker
// in b removes the key, anything else in b replaces a.
func mergeTrees(a any, b any) any {
	left, leftOK := a.(map[string]any)
	right, rightOK := b.(map[string]any)
	if !leftOK || !rightOK {
		return b
	}
	out := make(map[string]any, len(left)+len(right))
	for key, value := range left {
		out[key] = value
	}
	for key, value := range right {
		if _, ok := value.(deleteMarker); ok {
			delete(out, key)
			continue
		}
		out[key] = mergeTrees(left[key], value)
	}
	return out
}

func stripDeleteMarkers(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			if _, ok := child.(deleteMarker); ok {
				continue
			}
			out[key] = stripDeleteMarkers(child)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, child := range typed {
			if _, ok := child.(deleteMarker); ok {
				continue
			}
			out = append(out, stripDeleteMarkers(child))
		}
		return out
	default:
		return value
	}
}

func mergeIncludes(value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{typed}, nil
	case []any:
		includes := make([]string, 0, len(typed))
		for _, item := range typed {
			path, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("merge entry %v is not a path", item)
			}
			includes = append(includes, path)
		}
		return includes, nil
	default:
		return nil, fmt.Errorf("merge must be a path or a list of paths")
	}
}

var _ ports.ConfigLoaderPort = ConfigFileAdapter{}
