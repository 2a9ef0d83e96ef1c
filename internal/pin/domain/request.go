package domain

import "fmt"

// PinRequest describes one invocation of the pin workflow.
type PinRequest struct {
	// Mode selects how the pinned manifest is published.
	Mode Mode
	// Version pins every chart currently at the reference chart's version to
	// this release version. Empty when only explicit chart pins are given.
	Version string
	// ReferenceChart names the chart whose current version selects the pin
	// set for Version.
	ReferenceChart string
	// ReleaseRepo is the owner/name repository hosting the release tag for
	// Version.
	ReleaseRepo string
	// Pins are explicit chart pins applied on top of the version pin.
	Pins []ChartPin
	// ManifestFile is the manifest path relative to the deploy repo root.
	ManifestFile string
	// BaseBranch is the branch pull requests target.
	BaseBranch string
	// TargetBranch overrides the derived branch name when non-empty.
	TargetBranch string
	// Tag overrides the derived tag name when non-empty.
	Tag string
	// DryRun computes and reports the plan without writing anything.
	DryRun bool
}

// Validate rejects request combinations before any network call or file
// mutation happens.
func (r PinRequest) Validate() error {
	if r.Version == "" && len(r.Pins) == 0 {
		return fmt.Errorf("%w: need --version or at least one --chart-pin", ErrInvalidPinSpec)
	}
	if r.Version != "" {
		if r.ReferenceChart == "" {
			return fmt.Errorf("%w: --version requires --reference-chart", ErrInvalidPinSpec)
		}
		if _, _, err := SplitRepo(r.ReleaseRepo); err != nil {
			return fmt.Errorf("%w: --release-repo: %v", ErrInvalidPinSpec, err)
		}
	}
	if r.ManifestFile == "" {
		return fmt.Errorf("%w: manifest file must not be empty", ErrInvalidPinSpec)
	}
	if r.Mode == ModeBranch && r.BaseBranch == "" {
		return fmt.Errorf("%w: base branch must not be empty", ErrInvalidPinSpec)
	}
	return nil
}

// SetRequest describes a direct manifest field update for one chart.
// ManifestPath is a filesystem path; the setter does not need a checkout.
type SetRequest struct {
	Chart        string
	Assignments  []Assignment
	ManifestPath string
}

// CherryPickRequest describes copying chart entries from the manifest at one
// revision into the manifest at another. Neither revision's working tree is
// touched; the merged manifest is returned for printing.
type CherryPickRequest struct {
	// Target is the revision whose manifest receives the entries.
	Target string
	// Source is the revision whose manifest supplies the entries.
	Source string
	// Charts names the entries to copy. Must not be empty.
	Charts []string
	// ManifestFile is the manifest path inside both revisions.
	ManifestFile string
}

// PullRequestParams carries everything needed to open a pull request.
type PullRequestParams struct {
	// Repo is the owner/name deployment repository.
	Repo  string
	Head  string
	Base  string
	Title string
	Body  string
}
