package adapters

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"aptlyctl/internal/ports"
	"aptlyctl/internal/types"
)

// AptlyStateReader builds a SystemState from aptly list/show commands.
// Command failures are returned unchanged; there is no retry and no
// partial result.
type AptlyStateReader struct {
	Aptly ports.AptlyPort
}

func NewAptlyStateReader(aptly ports.AptlyPort) AptlyStateReader {
	return AptlyStateReader{Aptly: aptly}
}

func (r AptlyStateReader) Read(ctx context.Context) (types.SystemState, error) {
	state := types.NewSystemState()
	lists := []struct {
		entity string
		target types.Set
	}{
		{entity: "mirror", target: state.Mirrors},
		{entity: "repo", target: state.Repos},
		{entity: "snapshot", target: state.Snapshots},
	}
	for _, list := range lists {
		entries, err := r.list(ctx, list.entity)
		if err != nil {
			return types.SystemState{}, err
		}
		for _, entry := range entries {
			list.target.Add(entry)
		}
	}
	publishes, err := r.list(ctx, "publish")
	if err != nil {
		return types.SystemState{}, err
	}
	for _, line := range publishes {
		prefix, distribution, ok := parsePublishID(line)
		if !ok {
			log.Ctx(ctx).Debug().Str("line", line).Msg("ignoring publish list entry")
			continue
		}
		record, err := r.ShowPublish(ctx, prefix, distribution)
		if err != nil {
			return types.SystemState{}, err
		}
		sources := map[string]string{}
		for _, source := range record.Sources {
			if source.Kind != "snapshot" {
				continue
			}
			sources[source.Component] = source.Name
		}
		state.SetPublish(types.PublishID(prefix, distribution), sources)
	}
	log.Ctx(ctx).Debug().
		Int("mirrors", len(state.Mirrors)).
		Int("repos", len(state.Repos)).
		Int("snapshots", len(state.Snapshots)).
		Int("publishes", len(state.Publishes)).
		Msg("aptly state read")
	return state, nil
}

func (r AptlyStateReader) ShowMirror(ctx context.Context, name string) (types.MirrorRecord, error) {
	if err := requireName(name, "mirror"); err != nil {
		return types.MirrorRecord{}, err
	}
	result, err := r.Aptly.Aptly(ctx, "mirror", "show", name)
	if err != nil {
		return types.MirrorRecord{}, err
	}
	return parseMirrorRecord(name, result.Stdout), nil
}

func (r AptlyStateReader) ShowSnapshot(ctx context.Context, name string) (types.SnapshotRecord, error) {
	if err := requireName(name, "snapshot"); err != nil {
		return types.SnapshotRecord{}, err
	}
	result, err := r.Aptly.Aptly(ctx, "snapshot", "show", name)
	if err != nil {
		return types.SnapshotRecord{}, err
	}
	return parseSnapshotRecord(name, result.Stdout), nil
}

func (r AptlyStateReader) ShowPublish(ctx context.Context, prefix string, distribution string) (types.PublishRecord, error) {
	if err := requireName(distribution, "publish distribution"); err != nil {
		return types.PublishRecord{}, err
	}
	result, err := r.Aptly.Aptly(ctx, "publish", "show", distribution, prefix)
	if err != nil {
		return types.PublishRecord{}, err
	}
	record := parsePublishRecord(result.Stdout)
	if record.Prefix == "" {
		record.Prefix = prefix
	}
	if record.Distribution == "" {
		record.Distribution = distribution
	}
	return record, nil
}

// Version reads "aptly version: X" from the version command.
func (r AptlyStateReader) Version(ctx context.Context) (types.ToolVersion, error) {
	result, err := r.Aptly.Aptly(ctx, "version")
	if err != nil {
		return types.ToolVersion{}, err
	}
	fields := ParseShowOutput(result.Stdout)
	raw := fields["aptly version"]
	if raw == "" {
		return types.ToolVersion{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("aptly version output has no version field")
	}
	return types.ToolVersion{Raw: raw}, nil
}

func (r AptlyStateReader) list(ctx context.Context, entity string) ([]string, error) {
	result, err := r.Aptly.Aptly(ctx, entity, "list", "-raw")
	if err != nil {
		return nil, err
	}
	return parseRawList(result.Stdout), nil
}

func requireName(name string, what string) error {
	if strings.TrimSpace(name) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(what + " name is empty")
	}
	return nil
}

var _ ports.StateReaderPort = AptlyStateReader{}
