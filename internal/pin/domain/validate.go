package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nathantilsley/chart-pin/api"
)

// FullSHARegex validates complete 40-hex commit ids
var FullSHARegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// chartRules is the validatable projection of one manifest entry.
type chartRules struct {
	Repo      string `validate:"required,url"`
	Version   string `validate:"required"`
	Commit    string `validate:"omitempty,git_sha"`
	CommitURL string `validate:"omitempty,url"`
}

// NewValidator creates a configured validator instance
func NewValidator() *validator.Validate {
	v := validator.New()

	// Register custom full-SHA validation
	_ = v.RegisterValidation("git_sha", func(fl validator.FieldLevel) bool {
		return FullSHARegex.MatchString(fl.Field().String())
	})

	return v
}

// ValidateManifest checks every entry's structure and reports all offending
// charts in one error.
func ValidateManifest(m *api.Manifest) error {
	v := NewValidator()
	var problems []string
	for _, name := range m.ChartNames() {
		c := m.HelmCharts[name]
		rules := chartRules{
			Repo:      c.Repo,
			Version:   c.Version,
			Commit:    c.Meta[api.MetaCommit],
			CommitURL: c.Meta[api.MetaCommitURL],
		}
		if err := v.Struct(rules); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("manifest validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
