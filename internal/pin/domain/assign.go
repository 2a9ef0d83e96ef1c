package domain

import (
	"fmt"
	"strings"

	"github.com/nathantilsley/chart-pin/api"
)

// Top-level manifest entry fields addressable by the setter.
const (
	FieldRepo    = "repo"
	FieldVersion = "version"
)

// Assignment targets one manifest field: repo, version, or a metadata key.
type Assignment struct {
	Key   string
	Meta  bool
	Value string
}

// ParseAssignments parses CLI "key=value" and "meta.key=value" arguments.
func ParseAssignments(args []string) ([]Assignment, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no key=value pairs given", ErrInvalidAssignment)
	}
	out := make([]Assignment, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrInvalidAssignment, arg)
		}
		if metaKey, found := strings.CutPrefix(key, "meta."); found {
			if metaKey == "" {
				return nil, fmt.Errorf("%w: %q has an empty meta key", ErrInvalidAssignment, arg)
			}
			out = append(out, Assignment{Key: metaKey, Meta: true, Value: value})
			continue
		}
		if key != FieldRepo && key != FieldVersion {
			return nil, fmt.Errorf("%w: unknown field %q (valid: repo, version, meta.*)", ErrInvalidAssignment, key)
		}
		out = append(out, Assignment{Key: key, Value: value})
	}
	return out, nil
}

// ApplyAssignments mutates the named chart entry, creating it when absent.
// If any assignment targets metadata, the entry's whole metadata group is
// replaced; otherwise existing metadata is left untouched.
func ApplyAssignments(m *api.Manifest, chart string, assigns []Assignment) {
	entry, _ := m.Chart(chart)
	var meta map[string]string
	for _, a := range assigns {
		switch {
		case a.Meta:
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[a.Key] = a.Value
		case a.Key == FieldRepo:
			entry.Repo = a.Value
		case a.Key == FieldVersion:
			entry.Version = a.Value
		}
	}
	if meta != nil {
		entry.Meta = meta
	}
	m.SetChart(chart, entry)
}
