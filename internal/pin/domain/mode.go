package domain

import "fmt"

// Mode represents how a computed pin lands in version control.
type Mode int

const (
	ModeBranch Mode = iota // Commit on a managed branch and open a PR
	ModeOrphan             // Publish a parentless tagged commit
)

// String returns the string representation of the Mode.
// Implements the Stringer interface.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

var modeNames = [...]string{
	ModeBranch: "branch",
	ModeOrphan: "orphan",
}

// ParseMode maps a CLI mode argument to a Mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if s == name {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (valid: branch, orphan)", s)
}
