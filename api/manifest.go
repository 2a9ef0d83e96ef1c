package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// DefaultFile is the manifest's conventional name inside a deployment
// repository.
const DefaultFile = "build.json"

// Conventional metadata keys. Meta is an open string map; these are the keys
// the pin operations read and write.
const (
	MetaCommit     = "commit"
	MetaCommitURL  = "commitURL"
	MetaAppVersion = "appVersion"
)

// Manifest is the build.json document: a mapping from chart name to its
// pinned entry. Top-level keys other than "helmCharts" are carried through
// a load/mutate/store round trip untouched.
type Manifest struct {
	HelmCharts map[string]Chart

	extra map[string]json.RawMessage
}

// Chart is one manifest entry. Version is a free-form string, not
// necessarily semver.
type Chart struct {
	Repo    string            `json:"repo"`
	Version string            `json:"version"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Parse decodes manifest JSON. An absent helmCharts key yields an empty
// chart map.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Encode renders the manifest deterministically: two-space indent, sorted
// object keys, trailing newline.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Chart returns the named entry and whether it exists.
func (m *Manifest) Chart(name string) (Chart, bool) {
	c, ok := m.HelmCharts[name]
	return c, ok
}

// SetChart stores an entry, allocating the chart map on first use.
func (m *Manifest) SetChart(name string, c Chart) {
	if m.HelmCharts == nil {
		m.HelmCharts = make(map[string]Chart)
	}
	m.HelmCharts[name] = c
}

// ChartNames returns all chart names in sorted order.
func (m *Manifest) ChartNames() []string {
	names := make([]string, 0, len(m.HelmCharts))
	for name := range m.HelmCharts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the manifest so a change plan can be computed against an
// untouched original.
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{HelmCharts: make(map[string]Chart, len(m.HelmCharts))}
	for name, c := range m.HelmCharts {
		out.HelmCharts[name] = c.Clone()
	}
	if m.extra != nil {
		out.extra = maps.Clone(m.extra)
	}
	return out
}

// Clone copies the entry including its metadata map.
func (c Chart) Clone() Chart {
	c.Meta = maps.Clone(c.Meta)
	return c
}

// Equal reports whether two entries match field-for-field, metadata included.
func (c Chart) Equal(o Chart) bool {
	return c.Repo == o.Repo && c.Version == o.Version && maps.Equal(c.Meta, o.Meta)
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.HelmCharts = make(map[string]Chart)
	if charts, ok := raw["helmCharts"]; ok {
		if err := json.Unmarshal(charts, &m.HelmCharts); err != nil {
			return fmt.Errorf("helmCharts: %w", err)
		}
		delete(raw, "helmCharts")
	}
	m.extra = raw
	return nil
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.extra)+1)
	for k, v := range m.extra {
		out[k] = v
	}
	chartMap := m.HelmCharts
	if chartMap == nil {
		chartMap = map[string]Chart{}
	}
	charts, err := json.Marshal(chartMap)
	if err != nil {
		return nil, err
	}
	out["helmCharts"] = charts
	return json.Marshal(out)
}
