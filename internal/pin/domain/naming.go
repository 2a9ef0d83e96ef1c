package domain

import (
	"regexp"
	"strings"
	"time"
)

const timestampLayout = "20060102150405"

var refUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeRef collapses characters git forbids in ref names into single
// dashes, trims dot/dash runs from both ends, and drops the reserved .lock
// suffix.
func sanitizeRef(s string) string {
	s = refUnsafe.ReplaceAllString(s, "-")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.Trim(s, "-.")
	for strings.HasSuffix(s, ".lock") {
		s = strings.Trim(strings.TrimSuffix(s, ".lock"), "-.")
	}
	return s
}

// BranchName derives the managed branch for a pin run: the version and base
// for a version pin, chart and tag for a single chart pin, and a UTC
// timestamp when multiple charts are pinned together.
func BranchName(version, base string, pins []ChartPin, now time.Time) string {
	switch {
	case version != "" && len(pins) == 0:
		return "pin/" + sanitizeRef(version) + "-" + sanitizeRef(base)
	case version == "" && len(pins) == 1:
		return "pin/" + sanitizeRef(pins[0].Chart) + "-" + sanitizeRef(pins[0].ReleaseTag)
	default:
		return "pin/" + now.UTC().Format(timestampLayout)
	}
}

// TagName derives the published tag for an orphan pin, with the same
// timestamp fallback as BranchName.
func TagName(version string, pins []ChartPin, now time.Time) string {
	switch {
	case version != "":
		return "pin-" + sanitizeRef(version)
	case len(pins) == 1:
		return "pin-" + sanitizeRef(pins[0].Chart) + "-" + sanitizeRef(pins[0].ReleaseTag)
	default:
		return "pin-" + now.UTC().Format(timestampLayout)
	}
}

// CommitMessage summarizes a pin run for the commit subject and PR title.
func CommitMessage(version string, pins []ChartPin) string {
	parts := make([]string, 0, 2)
	if version != "" {
		parts = append(parts, "charts to "+version)
	}
	if len(pins) > 0 {
		names := make([]string, len(pins))
		for i, p := range pins {
			names[i] = p.Chart
		}
		parts = append(parts, strings.Join(names, ", "))
	}
	return "Pin " + strings.Join(parts, " and ")
}
