package adapters

import (
	"regexp"
	"strings"
	"time"

	"aptlyctl/internal/types"
)

// All scraping of aptly's human-readable output lives in this file so a
// format change only touches one place.

// createdAtLayouts covers the "Created At" renderings of aptly 1.4 and later
// as well as the Go default time format older builds printed.
var createdAtLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339,
}

var publishSourcePattern = regexp.MustCompile(`^\s+([\w.\-]+):\s+(\S+)\s+\[(\w+)\]\s*$`)

// ParseShowOutput parses "key: value" lines. Keys are lower-cased, values
// trimmed, lines without a colon ignored and repeated keys overwrite.
func ParseShowOutput(output string) map[string]string {
	result := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		result[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return result
}

// parseRawList reads the one-entry-per-line output of "list -raw".
func parseRawList(output string) []string {
	var entries []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		entries = append(entries, trimmed)
	}
	return entries
}

// parsePublishID splits a "publish list -raw" line into prefix and
// distribution. The distribution is the last field.
func parsePublishID(line string) (string, string, bool) {
	idx := strings.LastIndex(line, " ")
	if idx <= 0 || idx == len(line)-1 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// parsePublishSources reads the indented block that follows "Sources:".
func parsePublishSources(output string) []types.PublishSource {
	var sources []types.PublishSource
	inSources := false
	for _, line := range strings.Split(output, "\n") {
		if !inSources {
			if strings.TrimSpace(line) == "Sources:" {
				inSources = true
			}
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			break
		}
		match := publishSourcePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		sources = append(sources, types.PublishSource{
			Component: match[1],
			Name:      match[2],
			Kind:      match[3],
		})
	}
	return sources
}

func parsePublishRecord(output string) types.PublishRecord {
	fields := ParseShowOutput(output)
	return types.PublishRecord{
		Prefix:        fields["prefix"],
		Distribution:  fields["distribution"],
		Architectures: splitList(fields["architectures"]),
		Sources:       parsePublishSources(output),
	}
}

func parseMirrorRecord(name string, output string) types.MirrorRecord {
	fields := ParseShowOutput(output)
	record := types.MirrorRecord{
		Name:          fields["name"],
		ArchiveURL:    fields["archive root url"],
		Distribution:  fields["distribution"],
		Components:    splitList(fields["components"]),
		Architectures: splitList(fields["architectures"]),
		LastUpdate:    fields["last update"],
	}
	if record.Name == "" {
		record.Name = name
	}
	return record
}

func parseSnapshotRecord(name string, output string) types.SnapshotRecord {
	fields := ParseShowOutput(output)
	record := types.SnapshotRecord{
		Name:        fields["name"],
		Description: fields["description"],
		CreatedAt:   parseCreatedAt(fields["created at"]),
	}
	if record.Name == "" {
		record.Name = name
	}
	return record
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseCreatedAt returns the zero time for anything it cannot read.
func parseCreatedAt(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range createdAtLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
