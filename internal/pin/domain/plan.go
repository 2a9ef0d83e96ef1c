package domain

import (
	"fmt"
	"strings"

	"github.com/nathantilsley/chart-pin/api"
)

// Change records one chart entry's transition within a pin run.
type Change struct {
	Chart     string
	Old       api.Chart
	New       api.Chart
	OldExists bool
	StaleMeta bool // metadata carried over because commit resolution missed
}

// Plan is the ordered set of entry transitions a pin run will apply. An
// empty plan means the manifest already matches the request.
type Plan struct {
	Changes []Change
}

// Empty reports whether the run would change nothing.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0
}

// StaleCharts lists charts whose metadata was kept unresolved.
func (p *Plan) StaleCharts() []string {
	var names []string
	for _, c := range p.Changes {
		if c.StaleMeta {
			names = append(names, c.Chart)
		}
	}
	return names
}

// Summary renders one line per change for logs and PR bodies.
func (p *Plan) Summary() string {
	var sb strings.Builder
	for _, c := range p.Changes {
		switch {
		case !c.OldExists:
			fmt.Fprintf(&sb, "%s: added at %s\n", c.Chart, c.New.Version)
		case c.StaleMeta:
			fmt.Fprintf(&sb, "%s: %s -> %s (commit metadata kept, unresolved)\n", c.Chart, c.Old.Version, c.New.Version)
		default:
			fmt.Fprintf(&sb, "%s: %s -> %s\n", c.Chart, c.Old.Version, c.New.Version)
		}
	}
	return sb.String()
}
