package domain

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var fixedNow = time.Date(2024, 3, 7, 14, 30, 9, 0, time.UTC)

func TestBranchName(t *testing.T) {
	t.Parallel()

	singlePin := []ChartPin{{Chart: "coturn", ReleaseTag: "v4.19.0"}}
	twoPins := []ChartPin{
		{Chart: "coturn", ReleaseTag: "v4.19.0"},
		{Chart: "ldap-scim-bridge", ReleaseTag: "1.8.2"},
	}

	tests := []struct {
		name    string
		version string
		base    string
		pins    []ChartPin
		want    string
	}{
		{
			name:    "version pin",
			version: "5.23.0",
			base:    "main",
			want:    "pin/5.23.0-main",
		},
		{
			name:    "version pin onto namespaced base",
			version: "5.23.0",
			base:    "release/q1",
			want:    "pin/5.23.0-release-q1",
		},
		{
			name: "single chart pin",
			base: "main",
			pins: singlePin,
			want: "pin/coturn-v4.19.0",
		},
		{
			name: "multiple chart pins fall back to timestamp",
			base: "main",
			pins: twoPins,
			want: "pin/20240307143009",
		},
		{
			name:    "version plus chart pins fall back to timestamp",
			version: "5.23.0",
			base:    "main",
			pins:    singlePin,
			want:    "pin/20240307143009",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BranchName(tt.version, tt.base, tt.pins, fixedNow); got != tt.want {
				t.Errorf("BranchName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		pins    []ChartPin
		want    string
	}{
		{name: "version", version: "5.23.0", want: "pin-5.23.0"},
		{name: "single chart", pins: []ChartPin{{Chart: "coturn", ReleaseTag: "v4.19.0"}}, want: "pin-coturn-v4.19.0"},
		{
			name: "multiple charts fall back to timestamp",
			pins: []ChartPin{{Chart: "a", ReleaseTag: "1"}, {Chart: "b", ReleaseTag: "2"}},
			want: "pin-20240307143009",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TagName(tt.version, tt.pins, fixedNow); got != tt.want {
				t.Errorf("TagName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommitMessage(t *testing.T) {
	t.Parallel()

	pins := []ChartPin{
		{Chart: "coturn", ReleaseTag: "v4.19.0"},
		{Chart: "ldap-scim-bridge", ReleaseTag: "1.8.2"},
	}

	tests := []struct {
		name    string
		version string
		pins    []ChartPin
		want    string
	}{
		{name: "version only", version: "5.23.0", want: "Pin charts to 5.23.0"},
		{name: "pins only", pins: pins, want: "Pin coturn, ldap-scim-bridge"},
		{name: "both", version: "5.23.0", pins: pins[:1], want: "Pin charts to 5.23.0 and coturn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommitMessage(tt.version, tt.pins); got != tt.want {
				t.Errorf("CommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSanitizeRef_Property checks that sanitized fragments never contain
// sequences git rejects in ref names, for arbitrary input.
func TestSanitizeRef_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "in")
		out := sanitizeRef(in)

		if strings.Contains(out, "..") {
			t.Fatalf("sanitizeRef(%q) = %q contains %q", in, out, "..")
		}
		for _, bad := range []string{" ", "~", "^", ":", "?", "*", "[", "\\", "@{", "/"} {
			if strings.Contains(out, bad) {
				t.Fatalf("sanitizeRef(%q) = %q contains %q", in, out, bad)
			}
		}
		if out != "" {
			if strings.HasPrefix(out, ".") || strings.HasSuffix(out, ".") {
				t.Fatalf("sanitizeRef(%q) = %q starts or ends with a dot", in, out)
			}
			if strings.HasSuffix(out, ".lock") {
				t.Fatalf("sanitizeRef(%q) = %q ends with .lock", in, out)
			}
		}
	})
}
