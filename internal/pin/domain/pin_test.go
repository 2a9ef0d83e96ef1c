package domain

import (
	"errors"
	"testing"
)

func TestParseChartPin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    string
		want    ChartPin
		wantErr error
	}{
		{
			name: "valid tuple",
			spec: "coturn:v4.19.0:misc-charts:coturn/coturn",
			want: ChartPin{
				Chart:       "coturn",
				ReleaseTag:  "v4.19.0",
				ChartRepo:   "misc-charts",
				HostingRepo: "coturn/coturn",
			},
		},
		{
			name: "tag without v prefix",
			spec: "ldap-scim-bridge:1.8.2:wire-charts:wireapp/ldap-scim-bridge",
			want: ChartPin{
				Chart:       "ldap-scim-bridge",
				ReleaseTag:  "1.8.2",
				ChartRepo:   "wire-charts",
				HostingRepo: "wireapp/ldap-scim-bridge",
			},
		},
		{
			name:    "three fields",
			spec:    "coturn:v4.19.0:misc-charts",
			wantErr: ErrInvalidPinSpec,
		},
		{
			name:    "five fields",
			spec:    "coturn:v4.19.0:misc-charts:coturn/coturn:extra",
			wantErr: ErrInvalidPinSpec,
		},
		{
			name:    "empty field",
			spec:    "coturn::misc-charts:coturn/coturn",
			wantErr: ErrInvalidPinSpec,
		},
		{
			name:    "hosting repo without owner",
			spec:    "coturn:v4.19.0:misc-charts:coturn",
			wantErr: ErrInvalidPinSpec,
		},
		{
			name:    "empty spec",
			spec:    "",
			wantErr: ErrInvalidPinSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChartPin(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseChartPin(%q) error = %v, want %v", tt.spec, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChartPin(%q) unexpected error: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("ParseChartPin(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseChartPins_FailsOnFirstMalformed(t *testing.T) {
	t.Parallel()

	specs := []string{
		"coturn:v4.19.0:misc-charts:coturn/coturn",
		"broken-spec",
	}
	if _, err := ParseChartPins(specs); !errors.Is(err, ErrInvalidPinSpec) {
		t.Errorf("ParseChartPins() error = %v, want %v", err, ErrInvalidPinSpec)
	}

	pins, err := ParseChartPins(specs[:1])
	if err != nil {
		t.Fatalf("ParseChartPins() unexpected error: %v", err)
	}
	if len(pins) != 1 || pins[0].Chart != "coturn" {
		t.Errorf("ParseChartPins() = %+v, want one coturn pin", pins)
	}
}

func TestVersionPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
	}{
		{"v4.19.0", "4.19.0"},
		{"4.19.0", "4.19.0"},
		{"version-x", "version-x"},
	}

	for _, tt := range tests {
		p := ChartPin{ReleaseTag: tt.tag}
		if got := p.VersionPrefix(); got != tt.want {
			t.Errorf("VersionPrefix(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestSplitRepo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{in: "wireapp/wire-server", wantOwner: "wireapp", wantName: "wire-server"},
		{in: "wire-server", wantErr: true},
		{in: "/wire-server", wantErr: true},
		{in: "wireapp/", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		owner, name, err := SplitRepo(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SplitRepo(%q) expected error, got %q/%q", tt.in, owner, name)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitRepo(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if owner != tt.wantOwner || name != tt.wantName {
			t.Errorf("SplitRepo(%q) = %q, %q, want %q, %q", tt.in, owner, name, tt.wantOwner, tt.wantName)
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "branch", want: ModeBranch},
		{in: "orphan", want: ModeOrphan},
		{in: "", wantErr: true},
		{in: "Branch", wantErr: true},
		{in: "tag", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModeString(t *testing.T) {
	t.Parallel()

	if got := ModeBranch.String(); got != "branch" {
		t.Errorf("ModeBranch.String() = %q, want %q", got, "branch")
	}
	if got := ModeOrphan.String(); got != "orphan" {
		t.Errorf("ModeOrphan.String() = %q, want %q", got, "orphan")
	}
	if got := Mode(99).String(); got != "unknown" {
		t.Errorf("Mode(99).String() = %q, want %q", got, "unknown")
	}
}
