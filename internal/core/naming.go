package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"aptlyctl/internal/types"
)

const (
	// TimestampLayout renders the %T placeholder, e.g. 20121010T0000Z.
	TimestampLayout      = "20060102T1504Z"
	TimestampPlaceholder = "%T"

	BackRefCurrent  = "current"
	BackRefPrevious = "previous"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, value, time.UTC)
}

// ExpandName substitutes every %T in a name template.
func ExpandName(template string, t time.Time) string {
	return strings.ReplaceAll(template, TimestampPlaceholder, FormatTimestamp(t))
}

func HasTimestamp(template string) bool {
	return strings.Contains(template, TimestampPlaceholder)
}

// NamePattern matches the names a template expands to. The timestamp is
// captured in the first group.
func NamePattern(template string) *regexp.Regexp {
	parts := strings.Split(template, TimestampPlaceholder)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(parts, `(\d{8}T\d{4}Z)`) + "$")
}

// TimestampFromName recovers the %T value of a name produced by template.
func TimestampFromName(template string, name string) (time.Time, bool) {
	match := NamePattern(template).FindStringSubmatch(name)
	if len(match) < 2 {
		return time.Time{}, false
	}
	parsed, err := ParseTimestamp(match[1])
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// RoundTimestamp moves now back to the latest scheduled slot. Without a
// schedule the slot is the current minute; with one it is the last daily
// (or weekly) occurrence of Time that is not after now.
func RoundTimestamp(schedule *types.Timestamp, now time.Time) (time.Time, error) {
	now = now.UTC()
	if schedule == nil || strings.TrimSpace(schedule.Time) == "" {
		return now.Truncate(time.Minute), nil
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(schedule.Time))
	if err != nil {
		return time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid timestamp time %q, expected HH:MM", schedule.Time)).
			WithCause(err)
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	weekly := strings.TrimSpace(schedule.RepeatWeekly)
	if weekly == "" {
		if candidate.After(now) {
			candidate = candidate.AddDate(0, 0, -1)
		}
		return candidate, nil
	}
	target, ok := weekdays[strings.ToLower(weekly)]
	if !ok {
		return time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid repeat-weekly day %q", schedule.RepeatWeekly))
	}
	diff := (int(now.Weekday()) - int(target) + 7) % 7
	candidate = candidate.AddDate(0, 0, -diff)
	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -7)
	}
	return candidate, nil
}

// ParseBackReference turns "current", "previous" or a slot count into the
// number of slots to step back.
func ParseBackReference(value string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", BackRefCurrent:
		return 0, nil
	case BackRefPrevious:
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || steps < 0 {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid snapshot timestamp reference %q", value))
	}
	return steps, nil
}

// ResolveTimestamp returns the slot that lies backRef slots before now.
func ResolveTimestamp(schedule *types.Timestamp, backRef string, now time.Time) (time.Time, error) {
	steps, err := ParseBackReference(backRef)
	if err != nil {
		return time.Time{}, err
	}
	slot := now.UTC()
	for i := 0; i <= steps; i++ {
		slot, err = RoundTimestamp(schedule, slot)
		if err != nil {
			return time.Time{}, err
		}
		slot = slot.Add(-time.Second)
	}
	return slot.Add(time.Second), nil
}

// SnapshotName resolves a reference to a concrete snapshot name. Declared
// snapshots expand their template, anything else is taken literally.
func SnapshotName(cfg types.Config, ref types.SnapshotRef, now time.Time) (string, error) {
	declared, ok := cfg.Snapshots[ref.Name]
	if !ok {
		if HasTimestamp(ref.Name) {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("unknown snapshot: %s", ref.Name))
		}
		return ref.Name, nil
	}
	slot, err := ResolveTimestamp(declared.Timestamp, ref.Timestamp, now)
	if err != nil {
		return "", err
	}
	return ExpandName(declared.Name, slot), nil
}

// ParseRetentionAge accepts Go durations plus a day suffix ("14d").
func ParseRetentionAge(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(trimmed, "d"); ok {
		count, err := strconv.Atoi(days)
		if err != nil || count < 0 {
			return 0, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid retention max-age %q", value))
		}
		return time.Duration(count) * 24 * time.Hour, nil
	}
	age, err := time.ParseDuration(trimmed)
	if err != nil || age < 0 {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid retention max-age %q", value))
	}
	return age, nil
}
