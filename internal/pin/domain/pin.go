package domain

import (
	"fmt"
	"strings"
)

// ChartPin identifies one chart to pin from a chart-repository index:
// the chart's name, the upstream release tag to match, the chart-repository
// name the index lives under, and the owner/name hosting repository used to
// expand short commit hashes.
type ChartPin struct {
	Chart       string
	ReleaseTag  string
	ChartRepo   string
	HostingRepo string
}

// ParseChartPin parses the colon-delimited tuple form
// "chart:releaseTag:chartRepo:owner/repo". Exactly four non-empty fields.
func ParseChartPin(s string) (ChartPin, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return ChartPin{}, fmt.Errorf("%w: %q has %d field(s), want 4 (chart:tag:chartRepo:owner/repo)",
			ErrInvalidPinSpec, s, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return ChartPin{}, fmt.Errorf("%w: %q has an empty field", ErrInvalidPinSpec, s)
		}
	}
	pin := ChartPin{
		Chart:       parts[0],
		ReleaseTag:  parts[1],
		ChartRepo:   parts[2],
		HostingRepo: parts[3],
	}
	if _, _, err := SplitRepo(pin.HostingRepo); err != nil {
		return ChartPin{}, fmt.Errorf("%w: %v", ErrInvalidPinSpec, err)
	}
	return pin, nil
}

// ParseChartPins parses each spec, failing on the first malformed one.
func ParseChartPins(specs []string) ([]ChartPin, error) {
	pins := make([]ChartPin, 0, len(specs))
	for _, s := range specs {
		pin, err := ParseChartPin(s)
		if err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

// VersionPrefix is the upstream app-version prefix matched against the chart
// index: the release tag with any leading "v" stripped.
func (p ChartPin) VersionPrefix() string {
	return strings.TrimPrefix(p.ReleaseTag, "v")
}

// SplitRepo splits an "owner/name" repository identifier.
func SplitRepo(s string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not owner/name", s)
	}
	return owner, name, nil
}

// ResolvedCommit is an authoritative commit identity from the hosting API.
type ResolvedCommit struct {
	SHA string
	URL string
}

// IndexEntry is what a chart-index lookup yields for a pin: the chart's own
// version, the upstream application version, the short commit hash embedded
// in the entry, and the chart repository's URL.
type IndexEntry struct {
	ChartVersion string
	AppVersion   string
	ShortSHA     string
	RepoURL      string
}
