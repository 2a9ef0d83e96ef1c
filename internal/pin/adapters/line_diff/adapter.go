// Package linediff renders unified diffs of manifest encodings.
package linediff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Adapter implements ports.DiffPort with a line-by-line unified diff.
type Adapter struct{}

// New creates a new line diff adapter.
func New() *Adapter {
	return &Adapter{}
}

// Unified renders the change from before to after with three context lines.
func (a *Adapter) Unified(fromLabel, toLabel string, before, after []byte) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("error computing diff: %s", err)
	}
	return strings.TrimSpace(text)
}
