package domain

import "errors"

var (
	// ErrInvalidPinSpec indicates a malformed chart-pin tuple. Raised during
	// argument parsing, before any network or file access.
	ErrInvalidPinSpec = errors.New("invalid chart pin spec")

	// ErrInvalidAssignment indicates a malformed key=value field argument.
	ErrInvalidAssignment = errors.New("invalid field assignment")

	// ErrChartNotFound indicates a chart the operation requires is missing
	// from the manifest.
	ErrChartNotFound = errors.New("chart not found in manifest")

	// ErrReleaseNotFound indicates the hosting API has no tag for the
	// requested version. Callers degrade to keeping existing metadata.
	ErrReleaseNotFound = errors.New("release tag not found")

	// ErrCommitNotFound indicates a short commit hash could not be expanded
	// to a full SHA.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrIndexEntryNotFound indicates the chart index has no entry matching
	// the requested version prefix.
	ErrIndexEntryNotFound = errors.New("no matching chart index entry")
)
